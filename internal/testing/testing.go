// package testing contains shared testing utilities: doubles for the
// OpenList service, writers and readers that fail on demand, and a fake server.
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/olx/internal/models"
)

// MockService is a test double for [services.Service].
// Unset funcs return canned successes; every call is counted by method name.
type MockService struct {
	mu    sync.Mutex
	calls map[string]int

	URL        string
	LoginFunc  func(ctx context.Context, username, password string) (*models.LoginResult, error)
	MeFunc     func(ctx context.Context) (*models.User, error)
	LogoutFunc func(ctx context.Context) error
	ListFunc   func(ctx context.Context, req models.ListRequest) (*models.ListResult, error)
	StatFunc   func(ctx context.Context, req models.GetRequest) (*models.Object, error)
	SearchFunc func(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	ErrFunc    func(method string) error
}

func (m *MockService) record(method string) error {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	m.mu.Unlock()
	if m.ErrFunc != nil {
		return m.ErrFunc(method)
	}
	return nil
}

// Calls reports how often method was invoked.
func (m *MockService) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockService) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	if err := m.record("Login"); err != nil {
		return nil, err
	}
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return &models.LoginResult{Token: "mock-token"}, nil
}

func (m *MockService) Me(ctx context.Context) (*models.User, error) {
	if err := m.record("Me"); err != nil {
		return nil, err
	}
	if m.MeFunc != nil {
		return m.MeFunc(ctx)
	}
	return &models.User{ID: 1, Username: "mock"}, nil
}

func (m *MockService) Logout(ctx context.Context) error {
	if err := m.record("Logout"); err != nil {
		return err
	}
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *MockService) List(ctx context.Context, req models.ListRequest) (*models.ListResult, error) {
	if err := m.record("List"); err != nil {
		return nil, err
	}
	if m.ListFunc != nil {
		return m.ListFunc(ctx, req)
	}
	return &models.ListResult{}, nil
}

func (m *MockService) Stat(ctx context.Context, req models.GetRequest) (*models.Object, error) {
	if err := m.record("Stat"); err != nil {
		return nil, err
	}
	if m.StatFunc != nil {
		return m.StatFunc(ctx, req)
	}
	return &models.Object{Path: req.Path}, nil
}

func (m *MockService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	if err := m.record("Search"); err != nil {
		return nil, err
	}
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, req)
	}
	return &models.SearchResult{}, nil
}

func (m *MockService) Mkdir(ctx context.Context, path string) error { return m.record("Mkdir") }
func (m *MockService) Rename(ctx context.Context, path, name string) error {
	return m.record("Rename")
}
func (m *MockService) Remove(ctx context.Context, dir string, names ...string) error {
	return m.record("Remove")
}

func (m *MockService) Storages(ctx context.Context) (*models.StorageList, error) {
	if err := m.record("Storages"); err != nil {
		return nil, err
	}
	return &models.StorageList{}, nil
}

func (m *MockService) BaseURL() string {
	if m.URL == "" {
		return "http://localhost:5244"
	}
	return m.URL
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
