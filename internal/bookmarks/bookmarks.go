// Package bookmarks implements the bookmarks & recents registry (spec
// §4.8): a single TOML document holding named connection profiles plus
// a capped, deduplicated list of recently used connections, with
// optional password persistence through the credential store.
package bookmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/veeso-termscp/termscp-core/internal/credential"
)

// Protocol is the uppercase short name recorded in the bookmarks file,
// per spec §6.
type Protocol string

const (
	ProtocolSFTP   Protocol = "SFTP"
	ProtocolSCP    Protocol = "SCP"
	ProtocolFTP    Protocol = "FTP"
	ProtocolFTPS   Protocol = "FTPS"
	ProtocolS3     Protocol = "S3"
	ProtocolSMB    Protocol = "SMB"
	ProtocolWebDAV Protocol = "WEBDAV"
)

// MaxRecents bounds the recents list; the oldest entry is dropped once
// a new one would exceed it.
const MaxRecents = 16

// Bookmark is a named, persisted connection profile.
type Bookmark struct {
	Address   string            `toml:"address"`
	Port      int               `toml:"port"`
	Protocol  Protocol          `toml:"protocol"`
	Username  string            `toml:"username"`
	RemoteDir string            `toml:"remote_dir,omitempty"`
	StorageID string            `toml:"storage_id,omitempty"`
	Params    map[string]string `toml:"params,omitempty"`
}

// Recent is the same shape as Bookmark minus the user-supplied name.
type Recent struct {
	Address   string            `toml:"address"`
	Port      int               `toml:"port"`
	Protocol  Protocol          `toml:"protocol"`
	Username  string            `toml:"username"`
	RemoteDir string            `toml:"remote_dir,omitempty"`
	StorageID string            `toml:"storage_id,omitempty"`
	Params    map[string]string `toml:"params,omitempty"`
}

func (b Bookmark) tuple() string {
	return fmt.Sprintf("%s|%d|%s|%s", b.Address, b.Port, b.Protocol, b.Username)
}

func (r Recent) tuple() string {
	return fmt.Sprintf("%s|%d|%s|%s", r.Address, r.Port, r.Protocol, r.Username)
}

// AsRecent drops the name from a Bookmark to produce a Recent entry.
func (b Bookmark) AsRecent() Recent {
	return Recent{
		Address:   b.Address,
		Port:      b.Port,
		Protocol:  b.Protocol,
		Username:  b.Username,
		RemoteDir: b.RemoteDir,
		StorageID: b.StorageID,
		Params:    b.Params,
	}
}

type document struct {
	Bookmarks map[string]Bookmark `toml:"bookmarks"`
	Recents   []Recent            `toml:"recents"`
}

// Registry is the loaded bookmarks document, backed by a TOML file and
// the credential store for any persisted passwords.
type Registry struct {
	path  string
	store credential.Store
	doc   document
}

// Load reads path, or starts an empty registry if it does not exist.
func Load(path string, store credential.Store) (*Registry, error) {
	doc := document{Bookmarks: map[string]Bookmark{}}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &doc); err != nil {
			return nil, fmt.Errorf("bookmarks: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("bookmarks: stat %s: %w", path, err)
	}
	if doc.Bookmarks == nil {
		doc.Bookmarks = map[string]Bookmark{}
	}
	return &Registry{path: path, store: store, doc: doc}, nil
}

// Names returns bookmark names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.doc.Bookmarks))
	for n := range r.doc.Bookmarks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get looks up a bookmark by name.
func (r *Registry) Get(name string) (Bookmark, bool) {
	b, ok := r.doc.Bookmarks[name]
	return b, ok
}

// Recents returns the recents list, most recent first.
func (r *Registry) Recents() []Recent {
	out := make([]Recent, len(r.doc.Recents))
	copy(out, r.doc.Recents)
	return out
}

// Save adds or replaces a bookmark under name. When password is
// non-empty and persistPassword is true, a random storage_id is
// generated and the password is written through the credential store;
// the bookmark itself only ever records the storage_id.
func (r *Registry) Save(name string, b Bookmark, password string, persistPassword bool) error {
	if persistPassword && password != "" {
		id := uuid.NewString()
		if err := r.store.SetKey(id, password); err != nil {
			return fmt.Errorf("bookmarks: persist password for %q: %w", name, err)
		}
		b.StorageID = id
	}
	r.doc.Bookmarks[name] = b
	return r.persist()
}

// Delete removes a bookmark and, if it had a persisted password,
// deletes the associated credential.
func (r *Registry) Delete(name string) error {
	b, ok := r.doc.Bookmarks[name]
	if !ok {
		return nil
	}
	delete(r.doc.Bookmarks, name)
	if b.StorageID != "" {
		if err := r.store.DeleteKey(b.StorageID); err != nil {
			return fmt.Errorf("bookmarks: delete credential for %q: %w", name, err)
		}
	}
	return r.persist()
}

// AddRecent records a connection as the most recent, deduplicating by
// connection tuple (moving an existing match to the front rather than
// growing the list) and capping at MaxRecents.
func (r *Registry) AddRecent(rec Recent) error {
	filtered := make([]Recent, 0, len(r.doc.Recents)+1)
	filtered = append(filtered, rec)
	for _, existing := range r.doc.Recents {
		if existing.tuple() == rec.tuple() {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) > MaxRecents {
		filtered = filtered[:MaxRecents]
	}
	r.doc.Recents = filtered
	return r.persist()
}

// persist writes the document atomically: write to a temp file in the
// same directory, then rename over the target.
func (r *Registry) persist() error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bookmarks: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".bookmarks-*.toml")
	if err != nil {
		return fmt.Errorf("bookmarks: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(r.doc); err != nil {
		tmp.Close()
		return fmt.Errorf("bookmarks: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bookmarks: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("bookmarks: rename into place: %w", err)
	}
	return nil
}
