// package secrets implements an encrypted key/value store for credentials and tokens.
//
// Values are sealed with AES-GCM (random nonce, key name as associated data)
// and persisted as base64(nonce || ciphertext) in a JSON document. Callers never
// see crypto or I/O errors: writes report success as a bool and reads fall back
// to the supplied default, so a corrupt or re-keyed store behaves as empty.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
)

// Well-known keys.
const (
	KeyAuthToken  = "auth_token"
	KeyServerURL  = "server_url"
	KeyUsername   = "username"
	KeyPassword   = "password"
	KeyRememberMe = "remember_me"
)

const fileVersion = 1

// Store is a mutex-guarded encrypted key/value store.
//
// Every operation holds the lock for its whole read-modify-persist cycle,
// so writes to the same key never interleave.
type Store struct {
	mu      sync.Mutex
	path    string
	salt    []byte
	aead    cipher.AEAD
	entries map[string]string
	logger  *log.Logger
}

type document struct {
	Version int               `json:"version"`
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// New creates an in-memory Store sealed with aead.
func New(aead cipher.AEAD, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{aead: aead, entries: make(map[string]string), logger: logger}
}

// Open loads the store at path, deriving its key from secret and the salt recorded in the file.
// A missing or unreadable file starts an empty store with a fresh salt; the
// file is (re)written on the first write.
func Open(path string, secret []byte, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	doc := document{Version: fileVersion, Entries: map[string]string{}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			logger.Warn("secret store is corrupt, starting empty", "path", path, "err", err)
			doc = document{Version: fileVersion, Entries: map[string]string{}}
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read secret store: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil || len(salt) == 0 {
		if salt, err = newSalt(); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		// entries sealed under an unknown salt can never be opened again
		doc.Entries = map[string]string{}
	}

	aead, err := NewAEAD(secret, salt)
	if err != nil {
		return nil, err
	}

	s := New(aead, logger)
	s.path = path
	s.salt = salt
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
	return s, nil
}

// Put encrypts and stores value under key.
func (s *Store) Put(key, value string) bool {
	sealed, err := s.seal(key, value)
	if err != nil {
		s.logger.Warn("secret encryption failed", "key", key, "err", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[key]
	s.entries[key] = sealed
	if err := s.persist(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		s.logger.Warn("secret store write failed", "key", key, "err", err)
		return false
	}
	return true
}

// Get returns the decrypted value for key, or def when absent or unreadable.
func (s *Store) Get(key, def string) string {
	s.mu.Lock()
	sealed, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return def
	}

	value, err := s.open(key, sealed)
	if err != nil {
		s.logger.Warn("secret decryption failed", "key", key, "err", err)
		return def
	}
	return value
}

// Remove deletes key. Removing an absent key succeeds.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[key]
	if !had {
		return true
	}
	delete(s.entries, key)
	if err := s.persist(); err != nil {
		s.entries[key] = prev
		s.logger.Warn("secret store write failed", "key", key, "err", err)
		return false
	}
	return true
}

// Clear removes every key.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.entries
	s.entries = make(map[string]string)
	if err := s.persist(); err != nil {
		s.entries = prev
		s.logger.Warn("secret store clear failed", "err", err)
		return false
	}
	return true
}

// Contains reports whether key holds a value, readable or not.
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// PutBool stores a boolean flag.
func (s *Store) PutBool(key string, value bool) bool {
	return s.Put(key, strconv.FormatBool(value))
}

// GetBool reads a boolean flag, returning def when absent or unparsable.
func (s *Store) GetBool(key string, def bool) bool {
	v, err := strconv.ParseBool(s.Get(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

func (s *Store) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (s *Store) open(key, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], []byte(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// persist atomically replaces the backing file. Callers hold s.mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	doc := document{
		Version: fileVersion,
		Salt:    base64.StdEncoding.EncodeToString(s.salt),
		Entries: maps.Clone(s.entries),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".secrets-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
