// Package vault encrypts per-user credentials before they are stored.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const prefix = "v1:"

var ErrCorrupt = errors.New("vault: value cannot be decrypted")

// Vault seals strings with XChaCha20-Poly1305. The owner id is bound as
// associated data, so a value copied to another user does not open.
type Vault struct {
	aead cipher.AEAD
}

// New derives the key from secret with HKDF-SHA256.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte("wanderplan/vault"), []byte("user_system_configs"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return fromKey(key)
}

// NewEphemeral uses a random key. Values sealed by it do not survive a
// restart.
func NewEphemeral() *Vault {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	v, err := fromKey(key)
	if err != nil {
		panic(err)
	}
	return v
}

func fromKey(key []byte) (*Vault, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plain for owner. The empty string stays empty.
func (v *Vault) Seal(plain, owner string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := v.aead.Seal(nonce, nonce, []byte(plain), []byte(owner))
	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values written by the old client, which were only
// Base64 encoded, are still readable.
func (v *Vault) Open(sealed, owner string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, prefix) {
		b, err := base64.StdEncoding.DecodeString(sealed)
		if err != nil {
			return "", ErrCorrupt
		}
		return string(b), nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(raw) < v.aead.NonceSize() {
		return "", ErrCorrupt
	}
	nonce, body := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, body, []byte(owner))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}
