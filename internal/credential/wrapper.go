package credential

// EncryptedStore wraps another Store with the AES-128-GCM (legacy
// AES-128-CBC on read) encryption layer described in spec §4.7: secrets
// never touch the underlying backend in plaintext.
type EncryptedStore struct {
	inner     Store
	machineID string
}

// NewEncryptedStore wraps inner, encrypting/decrypting every value
// under a key derived from machineID (a per-machine identifier).
func NewEncryptedStore(inner Store, machineID string) *EncryptedStore {
	return &EncryptedStore{inner: inner, machineID: machineID}
}

func (e *EncryptedStore) IsSupported() bool { return e.inner.IsSupported() }

func (e *EncryptedStore) GetKey(storageID string) (string, error) {
	raw, err := e.inner.GetKey(storageID)
	if err != nil {
		return "", err
	}
	plain, err := Decrypt(e.machineID, raw)
	if err != nil {
		return "", newStoreError(ErrKindBadSyntax, err.Error())
	}
	return plain, nil
}

func (e *EncryptedStore) SetKey(storageID, key string) error {
	enc, err := Encrypt(e.machineID, key)
	if err != nil {
		return newStoreError(ErrKindProviderError, err.Error())
	}
	return e.inner.SetKey(storageID, enc)
}

func (e *EncryptedStore) DeleteKey(storageID string) error {
	return e.inner.DeleteKey(storageID)
}
