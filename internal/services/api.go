// API service for the OpenList HTTP API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/shared"
)

const DefaultBaseURL = "http://localhost:5244"

// APIService talks to one OpenList server through an [http.Client],
// normally one built by [pipeline.NewClient].
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates an API service for the server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the server this service targets.
func (a *APIService) BaseURL() string { return a.baseURL }

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, unwrapURLError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// unwrapURLError strips the [url.Error] wrapper so pipeline errors reach callers as is.
func unwrapURLError(err error) error {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return pipeline.Classify(hostOf(ue.URL), err)
	}
	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// call performs a JSON request and unwraps the response envelope.
func call[T any](ctx context.Context, a *APIService, method, path string, payload any) (*T, error) {
	var data []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		data = b
	}

	resp, err := a.do(ctx, method, path, data)
	if err != nil {
		return nil, err
	}

	host := hostOf(a.baseURL)
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(host, resp.StatusCode, "")
	}

	var env models.Envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if !env.OK() {
		return nil, statusError(host, env.Code, env.Message)
	}
	return env.Data, nil
}

// statusError builds the error for an HTTP or envelope failure code.
func statusError(host string, code int, message string) *pipeline.Error {
	err := pipeline.ServerError(host, code)
	if message != "" {
		err.Message = fmt.Sprintf("%s: %s", err.Message, message)
	}
	switch code {
	case http.StatusUnauthorized:
		err.Err = shared.ErrNotAuthenticated
	case http.StatusNotFound:
		err.Err = shared.ErrNotFound
	case http.StatusServiceUnavailable:
		err.Err = shared.ErrServiceUnavailable
	}
	return err
}

// Login exchanges credentials for a token.
// Rejected credentials are reported as [shared.ErrAuthFailed].
func (a *APIService) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	res, err := call[models.LoginResult](ctx, a, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Username: username, Password: password})
	if err != nil {
		var pe *pipeline.Error
		if errors.As(err, &pe) && pe.Kind == pipeline.KindServer {
			switch pe.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, pe.Message)
			}
		}
		return nil, err
	}
	if res == nil || res.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", shared.ErrAPIRequest)
	}
	return res, nil
}

// Me returns the account owning the current token.
func (a *APIService) Me(ctx context.Context) (*models.User, error) {
	user, err := call[models.User](ctx, a, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: empty user", shared.ErrAPIRequest)
	}
	return user, nil
}

// Logout invalidates the current token on the server.
func (a *APIService) Logout(ctx context.Context) error {
	_, err := call[models.Empty](ctx, a, http.MethodPost, "/api/auth/logout", nil)
	return err
}

// List returns one page of a directory.
func (a *APIService) List(ctx context.Context, req models.ListRequest) (*models.ListResult, error) {
	req.Path = shared.CleanRemotePath(req.Path)
	res, err := call[models.ListResult](ctx, a, http.MethodPost, "/api/fs/list", req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &models.ListResult{}, nil
	}
	for i := range res.Content {
		if res.Content[i].Path == "" {
			res.Content[i].Path = shared.JoinRemotePath(req.Path, res.Content[i].Name)
		}
		if res.Content[i].Parent == "" {
			res.Content[i].Parent = req.Path
		}
	}
	return res, nil
}

// Stat returns a single object including its raw download URL.
func (a *APIService) Stat(ctx context.Context, req models.GetRequest) (*models.Object, error) {
	req.Path = shared.CleanRemotePath(req.Path)
	obj, err := call[models.Object](ctx, a, http.MethodPost, "/api/fs/get", req)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, req.Path)
	}
	if obj.Path == "" {
		obj.Path = req.Path
	}
	return obj, nil
}

// Search finds objects under req.Parent matching req.Keywords.
func (a *APIService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	req.Parent = shared.CleanRemotePath(req.Parent)
	res, err := call[models.SearchResult](ctx, a, http.MethodPost, "/api/fs/search", req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &models.SearchResult{}, nil
	}
	return res, nil
}

// Mkdir creates a directory.
func (a *APIService) Mkdir(ctx context.Context, path string) error {
	_, err := call[models.Empty](ctx, a, http.MethodPost, "/api/fs/mkdir",
		models.MkdirRequest{Path: shared.CleanRemotePath(path)})
	return err
}

// Rename gives the object at path a new base name.
func (a *APIService) Rename(ctx context.Context, path, name string) error {
	if strings.ContainsAny(name, "/\\") || strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: invalid name %q", shared.ErrInvalidArgument, name)
	}
	_, err := call[models.Empty](ctx, a, http.MethodPost, "/api/fs/rename",
		models.RenameRequest{Path: shared.CleanRemotePath(path), Name: name})
	return err
}

// Remove deletes names from dir.
func (a *APIService) Remove(ctx context.Context, dir string, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: nothing to remove", shared.ErrMissingArgument)
	}
	_, err := call[models.Empty](ctx, a, http.MethodPost, "/api/fs/remove",
		models.RemoveRequest{Dir: shared.CleanRemotePath(dir), Names: names})
	return err
}

// Storages lists the mounted storages. Requires an admin token.
func (a *APIService) Storages(ctx context.Context) (*models.StorageList, error) {
	res, err := call[models.StorageList](ctx, a, http.MethodGet, "/api/admin/storage/list", nil)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &models.StorageList{}, nil
	}
	return res, nil
}
