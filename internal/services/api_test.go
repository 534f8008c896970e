package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/shared"
	tu "github.com/desertthunder/olx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.BaseURL() != DefaultBaseURL {
				t.Errorf("expected default baseURL %q, got %s", DefaultBaseURL, srv.BaseURL())
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/api/public/settings" {
					t.Errorf("expected path '/api/public/settings', got %s", r.URL.Path)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/api/public/settings")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Successful Request With Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("expected body 'plain text response', got %s", string(resp.Body))
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil {
				t.Fatal("expected error for invalid URL")
			}
			if !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Get(context.Background(), "/test")

			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Pipeline Errors Pass Through", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, &pipeline.Error{Kind: pipeline.KindNotConnected, Message: "offline"}),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Get(context.Background(), "/test")

			var pe *pipeline.Error
			if !errors.As(err, &pe) || pe.Kind != pipeline.KindNotConnected {
				t.Errorf("expected not connected pipeline error, got %v", err)
			}
			if err.Error() != "offline" {
				t.Errorf("expected unwrapped message 'offline', got %q", err.Error())
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService("http://example.com", client)
			_, err := srv.Get(context.Background(), "/test")

			if err == nil {
				t.Fatal("expected error for failed body read")
			}
			if !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("Response Headers Are Preserved", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Custom-Header", "test-value")
				w.Write([]byte("test"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.Headers.Get("X-Custom-Header") != "test-value" {
				t.Errorf("expected custom header 'test-value', got %s", resp.Headers.Get("X-Custom-Header"))
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		t.Run("Sends JSON Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
				}

				body, _ := io.ReadAll(r.Body)
				var data map[string]string
				if err := json.Unmarshal(body, &data); err != nil {
					t.Errorf("failed to unmarshal request body: %v", err)
				}
				if data["path"] != "/movies" {
					t.Errorf("expected path '/movies', got %v", data)
				}
				w.Write([]byte(`{"code":200}`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Post(context.Background(), "/api/fs/mkdir", []byte(`{"path":"/movies"}`))

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
		})
	})
}

// newFake starts a fake server and a pipeline-backed service that sends its current token.
func newFake(t *testing.T) (*tu.FakeOpenList, *APIService) {
	t.Helper()
	fake := tu.NewFakeOpenList(t, "admin", "secret")
	client := pipeline.NewClient(pipeline.Options{
		BaseDelay: time.Millisecond,
		Tokens:    pipeline.BearerToken(fake.Token),
	})
	return fake, NewAPIService(fake.URL, client)
}

func TestOpenListAuth(t *testing.T) {
	t.Run("Login", func(t *testing.T) {
		fake, srv := newFake(t)

		res, err := srv.Login(context.Background(), "admin", "secret")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Token == "" || res.Token != fake.Token() {
			t.Errorf("expected issued token, got %q", res.Token)
		}
	})

	t.Run("Login Wrong Password", func(t *testing.T) {
		fake, srv := newFake(t)

		_, err := srv.Login(context.Background(), "admin", "nope")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "password is incorrect") {
			t.Errorf("expected server message in %q", err.Error())
		}
		if n := fake.Hits("POST /api/auth/login"); n != 1 {
			t.Errorf("expected 1 login request, got %d", n)
		}
	})

	t.Run("Me Requires Token", func(t *testing.T) {
		_, srv := newFake(t)

		_, err := srv.Me(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}

		var pe *pipeline.Error
		if !errors.As(err, &pe) || pe.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 server error, got %v", err)
		}
	})

	t.Run("Me After Login", func(t *testing.T) {
		_, srv := newFake(t)
		if _, err := srv.Login(context.Background(), "admin", "secret"); err != nil {
			t.Fatalf("login failed: %v", err)
		}

		user, err := srv.Me(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.Username != "admin" {
			t.Errorf("expected user 'admin', got %q", user.Username)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		fake, srv := newFake(t)
		srv.Login(context.Background(), "admin", "secret")

		if err := srv.Logout(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fake.Token() != "" {
			t.Error("expected token invalidated on server")
		}
	})

	t.Run("Logout Not Found", func(t *testing.T) {
		fake, srv := newFake(t)
		srv.Login(context.Background(), "admin", "secret")
		fake.FailWith("POST /api/auth/logout", http.StatusNotFound)

		err := srv.Logout(context.Background())
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOpenListFS(t *testing.T) {
	setup := func(t *testing.T) (*tu.FakeOpenList, *APIService) {
		t.Helper()
		fake, srv := newFake(t)
		fake.AddObject("/", models.Object{Name: "movies", IsDir: true, Type: models.TypeFolder})
		fake.AddObject("/movies", models.Object{Name: "alien.mkv", Size: 4 << 30, Type: models.TypeVideo})
		fake.AddObject("/movies", models.Object{Name: "aliens.mkv", Size: 5 << 30, Type: models.TypeVideo})
		fake.AddObject("/movies", models.Object{Name: "notes.txt", Size: 120, Type: models.TypeText})
		if _, err := srv.Login(context.Background(), "admin", "secret"); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		return fake, srv
	}

	t.Run("List", func(t *testing.T) {
		_, srv := setup(t)

		res, err := srv.List(context.Background(), models.ListRequest{Path: "movies/"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 3 || len(res.Content) != 3 {
			t.Fatalf("expected 3 entries, got %d/%d", len(res.Content), res.Total)
		}
		if res.Content[0].Path != "/movies/alien.mkv" {
			t.Errorf("expected full path, got %q", res.Content[0].Path)
		}
	})

	t.Run("List Paged", func(t *testing.T) {
		_, srv := setup(t)

		res, err := srv.List(context.Background(), models.ListRequest{Path: "/movies", Page: 2, PerPage: 2})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 3 || len(res.Content) != 1 {
			t.Errorf("expected 1 of 3 entries on page 2, got %d of %d", len(res.Content), res.Total)
		}
	})

	t.Run("List Missing Directory", func(t *testing.T) {
		_, srv := setup(t)

		_, err := srv.List(context.Background(), models.ListRequest{Path: "/nope"})
		var pe *pipeline.Error
		if !errors.As(err, &pe) || pe.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected server error 500, got %v", err)
		}
		if !strings.Contains(pe.Message, "object not found") {
			t.Errorf("expected server message in %q", pe.Message)
		}
	})

	t.Run("Stat", func(t *testing.T) {
		fake, srv := setup(t)

		obj, err := srv.Stat(context.Background(), models.GetRequest{Path: "/movies/alien.mkv"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if obj.RawURL != fake.URL+"/d/movies/alien.mkv" {
			t.Errorf("unexpected raw url %q", obj.RawURL)
		}
	})

	t.Run("Search", func(t *testing.T) {
		_, srv := setup(t)

		res, err := srv.Search(context.Background(), models.SearchRequest{Parent: "/", Keywords: "ALIEN"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 2 {
			t.Errorf("expected 2 matches, got %d", res.Total)
		}
	})

	t.Run("Mkdir Rename Remove", func(t *testing.T) {
		fake, srv := setup(t)
		ctx := context.Background()

		if err := srv.Mkdir(ctx, "/movies/scifi"); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := srv.Rename(ctx, "/movies/scifi", "sci-fi"); err != nil {
			t.Fatalf("rename failed: %v", err)
		}
		if err := srv.Remove(ctx, "/movies", "notes.txt"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		got := strings.Join(fake.Children("/movies"), ",")
		if got != "alien.mkv,aliens.mkv,sci-fi" {
			t.Errorf("unexpected children %q", got)
		}
	})

	t.Run("Rename Rejects Paths", func(t *testing.T) {
		fake, srv := setup(t)

		err := srv.Rename(context.Background(), "/movies/alien.mkv", "../x")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if n := fake.Hits("POST /api/fs/rename"); n != 0 {
			t.Errorf("expected no request, got %d", n)
		}
	})

	t.Run("Remove Nothing", func(t *testing.T) {
		_, srv := setup(t)
		if err := srv.Remove(context.Background(), "/movies"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Storages", func(t *testing.T) {
		fake, srv := setup(t)
		fake.AddStorage(models.Storage{ID: 1, MountPath: "/movies", Driver: "Local", Status: "work"})

		res, err := srv.Storages(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Total != 1 || res.Content[0].Driver != "Local" {
			t.Errorf("unexpected storages %+v", res)
		}
	})

	t.Run("Retries Unavailable Server", func(t *testing.T) {
		fake, srv := setup(t)
		fake.FailWith("POST /api/fs/list", http.StatusServiceUnavailable)

		_, err := srv.List(context.Background(), models.ListRequest{Path: "/"})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if n := fake.Hits("POST /api/fs/list"); n != 3 {
			t.Errorf("expected 3 attempts, got %d", n)
		}
	})
}
