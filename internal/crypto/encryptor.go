package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrMissingKey is returned by every operation when no key is configured.
var ErrMissingKey = errors.New("encryption key is not configured")

var errShortCiphertext = errors.New("ciphertext too short")

const keyInfo = "oscar-gateway/session/v1"

type Encryptor interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipherText string) (string, error)
}

type AesGcmEncryptor struct {
	aead cipher.AEAD
}

func NewAesGcmEncryptor(key []byte) (*AesGcmEncryptor, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AesGcmEncryptor{aead: gcm}, nil
}

// FromSecret derives an AES-256 key from an operator-supplied secret of any
// length. An empty secret yields an Encryptor that always fails with
// ErrMissingKey, so the process can start and only the callers that need
// encryption are refused.
func FromSecret(secret string) (Encryptor, error) {
	if secret == "" {
		return missingKey{}, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return NewAesGcmEncryptor(key)
}

func (e *AesGcmEncryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *AesGcmEncryptor) Decrypt(cipherText string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(cipherText)
	if err != nil {
		return "", err
	}
	if len(data) < e.aead.NonceSize() {
		return "", errShortCiphertext
	}
	nonce, enc := data[:e.aead.NonceSize()], data[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, enc, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

type missingKey struct{}

func (missingKey) Encrypt(string) (string, error) { return "", ErrMissingKey }

func (missingKey) Decrypt(string) (string, error) { return "", ErrMissingKey }
