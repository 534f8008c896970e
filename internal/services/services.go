// package services defines interface Service for interacting with the OpenList HTTP API
package services

import (
	"context"

	"github.com/desertthunder/olx/internal/models"
)

// Service is the OpenList API surface used by the CLI and the TUI.
// [APIService] implements it.
type Service interface {
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)

	// Me returns the account owning the current token.
	Me(ctx context.Context) (*models.User, error)

	// Logout invalidates the current token on the server.
	Logout(ctx context.Context) error

	// List returns one page of a directory listing.
	List(ctx context.Context, req models.ListRequest) (*models.ListResult, error)

	// Stat returns a single object, including its raw URL for files.
	Stat(ctx context.Context, req models.GetRequest) (*models.Object, error)

	// Search finds objects by keyword below a parent directory.
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)

	Mkdir(ctx context.Context, path string) error
	Rename(ctx context.Context, path, name string) error
	Remove(ctx context.Context, dir string, names ...string) error

	// Storages lists mounted storages (admin only).
	Storages(ctx context.Context) (*models.StorageList, error)

	// BaseURL returns the server this service targets.
	BaseURL() string
}

var _ Service = (*APIService)(nil)
