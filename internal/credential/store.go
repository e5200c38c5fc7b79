// Package credential implements the credential store (spec §4.8):
// optional, encrypted-at-rest persistence of bookmark passwords behind
// either the OS keyring or a plain encrypted file, selected by whichever
// backend reports itself supported on the current host.
package credential

import "errors"

// ErrKind classifies Store failures the way the original client's
// KeyStorageError did, so callers can distinguish "no such key" from a
// genuine backend fault.
type ErrKind int

const (
	ErrKindNoSuchKey ErrKind = iota
	ErrKindBadSyntax
	ErrKindProviderError
)

// StoreError is returned by every Store method.
type StoreError struct {
	Kind ErrKind
	Err  error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

func newStoreError(kind ErrKind, msg string) *StoreError {
	return &StoreError{Kind: kind, Err: errors.New(msg)}
}

// Store persists one secret per storage_id. Implementations wrap
// whatever backend is available (OS keyring or an encrypted file) behind
// this one vocabulary.
type Store interface {
	// IsSupported reports whether this backend can be used on the
	// current host; callers fall back to the next candidate otherwise.
	IsSupported() bool
	GetKey(storageID string) (string, error)
	SetKey(storageID, key string) error
	DeleteKey(storageID string) error
}

// KindOf extracts the ErrKind from err, defaulting to ErrKindProviderError
// for errors not produced by this package.
func KindOf(err error) ErrKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindProviderError
}

// Select returns the first supported candidate, falling back to the
// last one if none report themselves supported (mirroring the original
// client's keyring-then-file fallback chain).
func Select(candidates ...Store) Store {
	for _, c := range candidates {
		if c.IsSupported() {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
