package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	keySize  = 32
	saltSize = 16
)

// scrypt cost parameter, lowered in tests
var scryptN = 1 << 15

// NewAEAD derives an AES-256-GCM cipher from secret material and a per-store salt.
func NewAEAD(secret, salt []byte) (cipher.AEAD, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty key material")
	}
	key, err := scrypt.Key(secret, salt, scryptN, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// LoadKeyMaterial returns the passphrase from the environment variable env when set,
// otherwise the contents of keyFile, generating a random key there on first use.
func LoadKeyMaterial(keyFile, env string) ([]byte, error) {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return []byte(v), nil
		}
	}
	if keyFile == "" {
		return nil, errors.New("no key file or passphrase configured")
	}

	data, err := os.ReadFile(keyFile)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) == 0 {
			return nil, fmt.Errorf("key file %s is corrupt", keyFile)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
