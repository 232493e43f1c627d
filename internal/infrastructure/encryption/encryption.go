package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"golang.org/x/crypto/scrypt"
)

// DefaultMasterSecret is the documented fallback when no master secret is configured
const DefaultMasterSecret = "default-key"

const (
	kdfSalt   = "salt"
	kdfN      = 16384
	kdfR      = 8
	kdfP      = 1
	keyLength = 32

	gcmNonceSize = 12
	cbcIVSize    = aes.BlockSize
)

// Service encrypts secrets with AES-256-GCM under a key derived once from the master secret.
// Blobs are "<hex nonce>:<hex ciphertext>". Legacy AES-256-CBC blobs (16-byte iv) still decrypt.
type Service struct {
	aead         cipher.AEAD
	block        cipher.Block
	usingDefault bool
}

var _ ports.EncryptionService = (*Service)(nil)

// NewService derives the key from masterSecret. An empty secret selects DefaultMasterSecret.
func NewService(masterSecret string) (*Service, error) {
	usingDefault := masterSecret == "" || masterSecret == DefaultMasterSecret
	if masterSecret == "" {
		masterSecret = DefaultMasterSecret
	}

	key, err := scrypt.Key([]byte(masterSecret), []byte(kdfSalt), kdfN, kdfR, kdfP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Service{aead: aead, block: block, usingDefault: usingDefault}, nil
}

// UsingDefaultKey reports whether the key was derived from DefaultMasterSecret
func (s *Service) UsingDefaultKey() bool {
	return s.usingDefault
}

// Encrypt seals plaintext under a fresh random nonce
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt or by the legacy CBC scheme
func (s *Service) Decrypt(blob string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(blob, ":")
	if !ok || ivHex == "" || ctHex == "" {
		return "", fmt.Errorf("%w: malformed blob", domain.ErrCorruptSecret)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid iv encoding", domain.ErrCorruptSecret)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", domain.ErrCorruptSecret)
	}

	switch len(iv) {
	case gcmNonceSize:
		plaintext, err := s.aead.Open(nil, iv, ciphertext, nil)
		if err != nil {
			return "", fmt.Errorf("%w: authentication failed", domain.ErrCorruptSecret)
		}
		return string(plaintext), nil
	case cbcIVSize:
		return s.decryptCBC(iv, ciphertext)
	default:
		return "", fmt.Errorf("%w: unexpected iv length %d", domain.ErrCorruptSecret, len(iv))
	}
}

func (s *Service) decryptCBC(iv, ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", domain.ErrCorruptSecret)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plaintext, ciphertext)

	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plaintext) {
		return "", fmt.Errorf("%w: invalid padding", domain.ErrCorruptSecret)
	}
	if !bytes.Equal(plaintext[len(plaintext)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return "", fmt.Errorf("%w: invalid padding", domain.ErrCorruptSecret)
	}
	return string(plaintext[:len(plaintext)-pad]), nil
}
