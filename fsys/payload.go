package fsys

// Payload is the tagged union of what a transfer pipeline operation can
// be asked to move, per spec §4.4 and design note §9 ("tagged variants
// over enum-with-tuple-data"). Exactly one of the three constructors
// below should be used; the zero value is not a valid Payload.
type Payload struct {
	kind    payloadKind
	file    File
	entries []File
}

type payloadKind int

const (
	payloadFile payloadKind = iota
	payloadAny
	payloadMany
)

// PayloadFile wraps a single regular file.
func PayloadFile(f File) Payload { return Payload{kind: payloadFile, file: f} }

// PayloadAny wraps a single entry that may be a directory.
func PayloadAny(e File) Payload { return Payload{kind: payloadAny, file: e} }

// PayloadMany wraps a batch of entries processed in iteration order.
func PayloadMany(entries []File) Payload { return Payload{kind: payloadMany, entries: entries} }

// Entries returns the flat list of top-level entries this payload
// denotes, in the order the pipeline must process them.
func (p Payload) Entries() []File {
	switch p.kind {
	case payloadFile, payloadAny:
		return []File{p.file}
	case payloadMany:
		return p.entries
	default:
		return nil
	}
}

// IsMany reports whether the payload is a Many batch, which changes
// failure semantics: per-file errors are logged and iteration continues
// rather than aborting the whole operation (spec §4.4, §7).
func (p Payload) IsMany() bool { return p.kind == payloadMany }
