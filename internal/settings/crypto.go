package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32 // AES-256
	iterations = 100000
)

// DefaultPassphrase protects the vault when MULTIBAGGER_VAULT_PASSPHRASE is unset.
const DefaultPassphrase = "multibagger-local-vault"

var errShortCiphertext = errors.New("ciphertext too short")

// Sealer encrypts vault contents with AES-256-GCM under a PBKDF2-derived key.
// Layout: salt | nonce | ciphertext+tag.
type Sealer struct {
	passphrase []byte
}

func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	return &Sealer{passphrase: []byte(passphrase)}
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a fresh salt and nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, errShortCiphertext
	}

	gcm, err := s.aead(data[:saltSize])
	if err != nil {
		return nil, err
	}

	body := data[saltSize:]
	if len(body) < gcm.NonceSize() {
		return nil, errShortCiphertext
	}

	plaintext, err := gcm.Open(nil, body[:gcm.NonceSize()], body[gcm.NonceSize():], nil)
	if err != nil {
		return nil, errors.New("decryption failed: invalid passphrase or corrupted vault")
	}
	return plaintext, nil
}
