package credential

import (
	"os"
	"path/filepath"
)

// FileStore persists secrets as individual files under dirPath, used
// when the OS keyring is unavailable.
type FileStore struct {
	dirPath string
}

// NewFileStore builds a FileStore rooted at dirPath.
func NewFileStore(dirPath string) *FileStore {
	return &FileStore{dirPath: dirPath}
}

func (f *FileStore) makeFilePath(storageID string) string {
	return filepath.Join(f.dirPath, "."+storageID+".key")
}

// IsSupported is always true: the filesystem is always available as a
// last-resort backend.
func (f *FileStore) IsSupported() bool { return true }

func (f *FileStore) GetKey(storageID string) (string, error) {
	p := f.makeFilePath(storageID)
	if _, err := os.Stat(p); err != nil {
		return "", newStoreError(ErrKindNoSuchKey, "no such key")
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", newStoreError(ErrKindProviderError, err.Error())
	}
	return string(data), nil
}

func (f *FileStore) SetKey(storageID, key string) error {
	p := f.makeFilePath(storageID)
	if err := os.WriteFile(p, []byte(key), 0o600); err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	// Mark the key file read-only, matching the original client's
	// intent to protect it from accidental modification.
	if err := os.Chmod(p, 0o400); err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	return nil
}

func (f *FileStore) DeleteKey(storageID string) error {
	p := f.makeFilePath(storageID)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	return nil
}
