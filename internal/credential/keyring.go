package credential

import (
	"errors"

	"github.com/99designs/keyring"
)

// KeyringStore persists secrets in the OS-native credential store
// (macOS Keychain, Secret Service, Windows Credential Manager, ...) via
// 99designs/keyring.
type KeyringStore struct {
	service string
}

// NewKeyringStore builds a KeyringStore under the given service name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (k *KeyringStore) open() (keyring.Keyring, error) {
	return keyring.Open(keyring.Config{ServiceName: k.service})
}

// IsSupported probes the backend with a dummy lookup, mirroring the
// original client's dummy-service probe: any outcome other than "no
// backend available" counts as supported, including a "not found"
// result and errors with no analog in this library's error set (the
// original's NoStorageAccess/PlatformFailure are the only ones that
// flip this to false; everything else defaults to true).
func (k *KeyringStore) IsSupported() bool {
	ring, err := k.open()
	if err != nil {
		return false
	}
	_, err = ring.Get("dummy-service")
	return probeSupported(err)
}

// probeSupported classifies the result of the dummy-service probe.
// Only an error indicating no usable backend exists flips this to
// false; everything else, including ErrKeyNotFound and errors this
// library has no specific variant for, defaults to true.
func probeSupported(err error) bool {
	return err == nil || !errors.Is(err, keyring.ErrNoAvailImpl)
}

func (k *KeyringStore) GetKey(storageID string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", newStoreError(ErrKindProviderError, err.Error())
	}
	item, err := ring.Get(storageID)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", newStoreError(ErrKindNoSuchKey, "no such key")
		}
		return "", newStoreError(ErrKindProviderError, err.Error())
	}
	return string(item.Data), nil
}

func (k *KeyringStore) SetKey(storageID, key string) error {
	ring, err := k.open()
	if err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	item := keyring.Item{Key: storageID, Data: []byte(key), Label: storageID}
	if err := ring.Set(item); err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	return nil
}

func (k *KeyringStore) DeleteKey(storageID string) error {
	ring, err := k.open()
	if err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	if err := ring.Remove(storageID); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	return nil
}
