package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func init() {
	scryptN = 1 << 4
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	aead, err := NewAEAD([]byte("test-secret"), []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("failed to create aead: %v", err)
	}
	return New(aead, nil)
}

func TestStore(t *testing.T) {
	t.Run("Put And Get", func(t *testing.T) {
		s := newTestStore(t)

		if !s.Put(KeyAuthToken, "tok-123") {
			t.Fatal("expected put to succeed")
		}
		if got := s.Get(KeyAuthToken, ""); got != "tok-123" {
			t.Errorf("expected tok-123, got %q", got)
		}
		if !s.Contains(KeyAuthToken) {
			t.Error("expected key to be present")
		}
	})

	t.Run("Get Missing Returns Default", func(t *testing.T) {
		s := newTestStore(t)
		if got := s.Get("missing", "fallback"); got != "fallback" {
			t.Errorf("expected fallback, got %q", got)
		}
	})

	t.Run("Values Are Not Stored In Plaintext", func(t *testing.T) {
		s := newTestStore(t)
		s.Put(KeyPassword, "hunter2")

		if strings.Contains(s.entries[KeyPassword], "hunter2") {
			t.Error("expected password to be encrypted at rest")
		}
	})

	t.Run("Tampered Value Returns Default", func(t *testing.T) {
		s := newTestStore(t)
		s.Put(KeyPassword, "hunter2")
		s.entries[KeyPassword] = "AAAA" + s.entries[KeyPassword][4:]

		if got := s.Get(KeyPassword, "default"); got != "default" {
			t.Errorf("expected default for tampered value, got %q", got)
		}
	})

	t.Run("Corrupt Encoding Returns Default", func(t *testing.T) {
		s := newTestStore(t)
		s.entries[KeyUsername] = "%%%not-base64"

		if got := s.Get(KeyUsername, "default"); got != "default" {
			t.Errorf("expected default for corrupt value, got %q", got)
		}
	})

	t.Run("Value Bound To Key", func(t *testing.T) {
		s := newTestStore(t)
		s.Put(KeyAuthToken, "tok")
		s.entries[KeyServerURL] = s.entries[KeyAuthToken]

		if got := s.Get(KeyServerURL, ""); got != "" {
			t.Errorf("expected swapped ciphertext to be rejected, got %q", got)
		}
	})

	t.Run("Remove And Clear", func(t *testing.T) {
		s := newTestStore(t)
		s.Put(KeyUsername, "u")
		s.Put(KeyPassword, "p")

		if !s.Remove(KeyUsername) {
			t.Fatal("expected remove to succeed")
		}
		if s.Contains(KeyUsername) {
			t.Error("expected username to be removed")
		}
		if !s.Remove("never-set") {
			t.Error("expected removing an absent key to succeed")
		}

		if !s.Clear() {
			t.Fatal("expected clear to succeed")
		}
		if s.Contains(KeyPassword) {
			t.Error("expected store to be empty after clear")
		}
	})

	t.Run("Bools", func(t *testing.T) {
		s := newTestStore(t)
		if s.GetBool(KeyRememberMe, false) {
			t.Error("expected default false")
		}
		s.PutBool(KeyRememberMe, true)
		if !s.GetBool(KeyRememberMe, false) {
			t.Error("expected stored true")
		}
		s.Put(KeyRememberMe, "maybe")
		if s.GetBool(KeyRememberMe, false) {
			t.Error("expected default for unparsable flag")
		}
	})

	t.Run("Concurrent Writes", func(t *testing.T) {
		s := newTestStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.Put(KeyAuthToken, "tok-"+strconv.Itoa(i))
				s.Get(KeyAuthToken, "")
			}(i)
		}
		wg.Wait()

		if got := s.Get(KeyAuthToken, ""); !strings.HasPrefix(got, "tok-") {
			t.Errorf("expected a complete token value, got %q", got)
		}
	})
}

func TestPersistence(t *testing.T) {
	t.Run("Reopen Reads Values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets.json")
		s, err := Open(path, []byte("pass"), nil)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		s.Put(KeyServerURL, "http://localhost:5244")

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected store file: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}

		reopened, err := Open(path, []byte("pass"), nil)
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		if got := reopened.Get(KeyServerURL, ""); got != "http://localhost:5244" {
			t.Errorf("expected persisted url, got %q", got)
		}
	})

	t.Run("Wrong Key Degrades To Absent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets.json")
		s, _ := Open(path, []byte("pass"), nil)
		s.Put(KeyAuthToken, "tok")

		rekeyed, err := Open(path, []byte("other"), nil)
		if err != nil {
			t.Fatalf("expected open to succeed with another key, got %v", err)
		}
		if got := rekeyed.Get(KeyAuthToken, "none"); got != "none" {
			t.Errorf("expected default under wrong key, got %q", got)
		}
	})

	t.Run("Corrupt File Degrades To Empty", func(t *testing.T) {
		for _, content := range []string{"{not json", `{"version":1,"salt":"AAAA`} {
			path := filepath.Join(t.TempDir(), "secrets.json")
			os.WriteFile(path, []byte(content), 0o600)

			s, err := Open(path, []byte("pass"), nil)
			if err != nil {
				t.Fatalf("expected corrupt store %q to open empty, got %v", content, err)
			}
			if s.Contains(KeyAuthToken) {
				t.Errorf("expected empty store for %q", content)
			}
			if !s.Put(KeyUsername, "alice") {
				t.Fatalf("expected put to rewrite corrupt store %q", content)
			}

			reopened, err := Open(path, []byte("pass"), nil)
			if err != nil {
				t.Fatalf("failed to reopen store: %v", err)
			}
			if got := reopened.Get(KeyUsername, ""); got != "alice" {
				t.Errorf("expected rewritten value, got %q", got)
			}
		}
	})

	t.Run("Failed Write Keeps Previous Value", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		os.WriteFile(blocker, []byte("x"), 0o600)

		s := newTestStore(t)
		s.Put(KeyUsername, "alice")
		s.path = filepath.Join(blocker, "secrets.json")

		if s.Put(KeyUsername, "bob") {
			t.Fatal("expected put to fail when the file cannot be written")
		}
		if got := s.Get(KeyUsername, ""); got != "alice" {
			t.Errorf("expected previous value to survive, got %q", got)
		}
		if s.Clear() {
			t.Error("expected clear to fail when the file cannot be written")
		}
		if !s.Contains(KeyUsername) {
			t.Error("expected entries to survive a failed clear")
		}
	})
}

func TestLoadKeyMaterial(t *testing.T) {
	t.Run("Environment Wins", func(t *testing.T) {
		t.Setenv("OLX_TEST_PASSPHRASE", "from-env")
		key, err := LoadKeyMaterial(filepath.Join(t.TempDir(), "key"), "OLX_TEST_PASSPHRASE")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(key) != "from-env" {
			t.Errorf("expected env passphrase, got %q", key)
		}
	})

	t.Run("Generates And Reuses Key File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "secret.key")
		first, err := LoadKeyMaterial(path, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(first) != keySize {
			t.Errorf("expected %d byte key, got %d", keySize, len(first))
		}

		second, err := LoadKeyMaterial(path, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Error("expected key file to be reused")
		}
	})

	t.Run("Corrupt Key File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret.key")
		os.WriteFile(path, []byte("zz-not-hex"), 0o600)

		if _, err := LoadKeyMaterial(path, ""); err == nil {
			t.Error("expected error for corrupt key file")
		}
	})

	t.Run("Nothing Configured", func(t *testing.T) {
		if _, err := LoadKeyMaterial("", ""); err == nil {
			t.Error("expected error without key file or passphrase")
		}
	})

	t.Run("Empty Secret Rejected", func(t *testing.T) {
		if _, err := NewAEAD(nil, []byte("salt")); err == nil {
			t.Error("expected error for empty key material")
		}
	})
}
