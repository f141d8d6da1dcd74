package credentials

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

var _ Store = (*FileStore)(nil)

// FileStore seals the credential pair to a file with XChaCha20-Poly1305. It is
// the secure-storage stand-in on platforms without a keychain. A missing,
// truncated, or tamper-damaged file loads as unauthenticated rather than
// failing.
type FileStore struct {
	path string
	aead cipher.AEAD
	lock sync.Mutex
}

// NewFileStore creates a store sealing to path with the given hex encoded
// 256-bit key.
func NewFileStore(path, hexKey string) (*FileStore, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] decode key")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[NewFileStore] key must be %d bytes", chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] cipher")
	}
	return &FileStore{path: path, aead: aead}, nil
}

func (s *FileStore) Load() (*Credentials, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil // missing or unreadable file means unauthenticated
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, nil
	}
	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, nil // tampered or re-keyed file, treat as unauthenticated
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, nil
	}
	return &creds, nil
}

func (s *FileStore) Save(creds *Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal")
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[FileStore.Save] nonce")
	}
	sealed := s.aead.Seal(nil, nonce, plaintext, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Save] mkdir")
	}
	if err := os.WriteFile(s.path, append(nonce, sealed...), 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Save] write")
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove")
	}
	return nil
}
