package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/olx/internal/models"
)

// FakeOpenList is an in-memory OpenList server for tests.
//
// It accepts a single account, issues HS256 JWTs and serves a mutable file tree.
// Protected routes answer HTTP 401 with an envelope code of 401 when the
// bearer token does not match the last issued one.
type FakeOpenList struct {
	*httptest.Server

	mu       sync.Mutex
	username string
	password string
	token    string
	tree     map[string][]models.Object
	storages []models.Storage
	hits     map[string]int
	failures map[string]int
	delay    time.Duration
}

// NewFakeOpenList starts a server accepting username/password. It is closed with the test.
func NewFakeOpenList(t *testing.T, username, password string) *FakeOpenList {
	t.Helper()
	f := &FakeOpenList{
		username: username,
		password: password,
		tree:     map[string][]models.Object{"/": {}},
		hits:     make(map[string]int),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.count)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", f.login)

		r.Group(func(r chi.Router) {
			r.Use(f.authenticate)
			r.Get("/auth/me", f.me)
			r.Post("/auth/logout", f.logout)
			r.Post("/fs/list", f.list)
			r.Post("/fs/get", f.get)
			r.Post("/fs/search", f.search)
			r.Post("/fs/mkdir", f.mkdir)
			r.Post("/fs/rename", f.rename)
			r.Post("/fs/remove", f.remove)
			r.Get("/admin/storage/list", f.storageList)
		})
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// SignedToken returns an HS256 JWT for subject expiring at exp.
func SignedToken(subject string, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("fake-openlist"))
	if err != nil {
		panic(err)
	}
	return tok
}

// Token returns the currently valid token, empty before the first login.
func (f *FakeOpenList) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// SetToken makes tok the valid token without a login.
func (f *FakeOpenList) SetToken(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = tok
}

// Hits reports how many requests reached route, e.g. "POST /api/auth/login".
func (f *FakeOpenList) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// TotalHits reports all requests served.
func (f *FakeOpenList) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

// FailWith makes route answer with the HTTP status code until cleared with 0.
func (f *FakeOpenList) FailWith(route string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = code
}

// SetDelay holds every response for d.
func (f *FakeOpenList) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// AddObject places obj in dir, creating dir (and obj's own listing when it is a directory).
func (f *FakeOpenList) AddObject(dir string, obj models.Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(dir, obj)
}

// AddStorage registers a mounted storage.
func (f *FakeOpenList) AddStorage(s models.Storage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storages = append(f.storages, s)
}

// Children returns the names listed in dir.
func (f *FakeOpenList) Children(dir string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, o := range f.tree[clean(dir)] {
		names = append(names, o.Name)
	}
	return names
}

func (f *FakeOpenList) addLocked(dir string, obj models.Object) {
	dir = clean(dir)
	if _, ok := f.tree[dir]; !ok && dir != "/" {
		parent, name := path.Split(dir)
		f.addLocked(parent, models.Object{Name: name, IsDir: true, Type: models.TypeFolder})
	}
	obj.Parent = dir
	obj.Path = path.Join(dir, obj.Name)
	if obj.Modified.IsZero() {
		obj.Modified = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if !slices.ContainsFunc(f.tree[dir], func(o models.Object) bool { return o.Name == obj.Name }) {
		f.tree[dir] = append(f.tree[dir], obj)
	}
	if obj.IsDir {
		if _, ok := f.tree[obj.Path]; !ok {
			f.tree[obj.Path] = []models.Object{}
		}
	}
}

func clean(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

func (f *FakeOpenList) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.hits[route]++
		code, failing := f.failures[route]
		delay := f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeEnvelope(w, code, code, http.StatusText(code), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeOpenList) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.token != "" && r.Header.Get("Authorization") == "Bearer "+f.token
		f.mu.Unlock()

		if !valid {
			writeEnvelope(w, http.StatusUnauthorized, http.StatusUnauthorized, "token is invalid", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func respond(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, http.StatusOK, "success", data)
}

func reject(w http.ResponseWriter, code int, message string) {
	writeEnvelope(w, http.StatusOK, code, message, nil)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		reject(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (f *FakeOpenList) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username != f.username || req.Password != f.password {
		reject(w, http.StatusBadRequest, "password is incorrect")
		return
	}

	tok := SignedToken(req.Username, time.Now().Add(48*time.Hour))
	f.mu.Lock()
	f.token = tok
	f.mu.Unlock()
	respond(w, models.LoginResult{Token: tok})
}

func (f *FakeOpenList) me(w http.ResponseWriter, r *http.Request) {
	respond(w, models.User{ID: 1, Username: f.username, BasePath: "/", Role: 2})
}

func (f *FakeOpenList) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.token = ""
	f.mu.Unlock()
	respond(w, nil)
}

func (f *FakeOpenList) list(w http.ResponseWriter, r *http.Request) {
	var req models.ListRequest
	if !decode(w, r, &req) {
		return
	}

	f.mu.Lock()
	children, found := f.tree[clean(req.Path)]
	children = slices.Clone(children)
	f.mu.Unlock()

	if !found {
		reject(w, http.StatusInternalServerError, "object not found")
		return
	}

	total := len(children)
	if req.PerPage > 0 {
		page := max(req.Page, 1)
		start := min((page-1)*req.PerPage, total)
		end := min(start+req.PerPage, total)
		children = children[start:end]
	}
	respond(w, models.ListResult{Content: children, Total: total, Write: true, Provider: "Local"})
}

func (f *FakeOpenList) get(w http.ResponseWriter, r *http.Request) {
	var req models.GetRequest
	if !decode(w, r, &req) {
		return
	}

	p := clean(req.Path)
	if p == "/" {
		respond(w, models.Object{Name: "root", IsDir: true, Type: models.TypeFolder, Path: "/"})
		return
	}

	dir, name := path.Split(p)
	f.mu.Lock()
	idx := slices.IndexFunc(f.tree[clean(dir)], func(o models.Object) bool { return o.Name == name })
	var obj models.Object
	if idx >= 0 {
		obj = f.tree[clean(dir)][idx]
	}
	f.mu.Unlock()

	if idx < 0 {
		reject(w, http.StatusInternalServerError, "object not found")
		return
	}
	if !obj.IsDir {
		obj.RawURL = f.URL + "/d" + obj.Path
	}
	respond(w, obj)
}

func (f *FakeOpenList) search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	parent := clean(req.Parent)
	keywords := strings.ToLower(req.Keywords)

	f.mu.Lock()
	var found []models.Object
	for dir, children := range f.tree {
		if dir != parent && !strings.HasPrefix(dir, strings.TrimSuffix(parent, "/")+"/") {
			continue
		}
		for _, o := range children {
			switch {
			case req.Scope == models.ScopeFolders && !o.IsDir, req.Scope == models.ScopeFiles && o.IsDir:
				continue
			}
			if strings.Contains(strings.ToLower(o.Name), keywords) {
				found = append(found, o)
			}
		}
	}
	f.mu.Unlock()

	slices.SortFunc(found, func(a, b models.Object) int { return strings.Compare(a.Path, b.Path) })
	respond(w, models.SearchResult{Content: found, Total: len(found)})
}

func (f *FakeOpenList) mkdir(w http.ResponseWriter, r *http.Request) {
	var req models.MkdirRequest
	if !decode(w, r, &req) {
		return
	}
	p := clean(req.Path)
	if p == "/" {
		reject(w, http.StatusForbidden, "cannot create root")
		return
	}
	dir, name := path.Split(p)
	f.AddObject(dir, models.Object{Name: name, IsDir: true, Type: models.TypeFolder})
	respond(w, nil)
}

func (f *FakeOpenList) rename(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if !decode(w, r, &req) {
		return
	}
	p := clean(req.Path)
	dir, name := path.Split(p)
	dir = clean(dir)

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := slices.IndexFunc(f.tree[dir], func(o models.Object) bool { return o.Name == name })
	if idx < 0 {
		reject(w, http.StatusInternalServerError, "object not found")
		return
	}
	obj := f.tree[dir][idx]
	obj.Name = req.Name
	obj.Path = path.Join(dir, req.Name)
	f.tree[dir][idx] = obj
	if obj.IsDir {
		f.tree[obj.Path] = f.tree[p]
		delete(f.tree, p)
	}
	respond(w, nil)
}

func (f *FakeOpenList) remove(w http.ResponseWriter, r *http.Request) {
	var req models.RemoveRequest
	if !decode(w, r, &req) {
		return
	}
	dir := clean(req.Dir)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tree[dir] = slices.DeleteFunc(f.tree[dir], func(o models.Object) bool {
		if slices.Contains(req.Names, o.Name) {
			delete(f.tree, o.Path)
			return true
		}
		return false
	})
	respond(w, nil)
}

func (f *FakeOpenList) storageList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	storages := slices.Clone(f.storages)
	f.mu.Unlock()
	respond(w, models.StorageList{Content: storages, Total: len(storages)})
}
