package models

import (
	"encoding/json"
	"time"
)

// Envelope wraps every OpenList API response. A call succeeded iff Code is 200.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// OK reports whether the server accepted the call.
func (e Envelope[T]) OK() bool { return e.Code == 200 }

// Empty is the payload of calls that return no data.
type Empty = json.RawMessage

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string `json:"token"`
}

// User is the account returned by /api/auth/me.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	BasePath   string `json:"base_path"`
	Role       int    `json:"role"`
	Disabled   bool   `json:"disabled"`
	Permission int    `json:"permission"`
	SSOID      string `json:"sso_id,omitempty"`
}

// Object types reported in [Object.Type].
const (
	TypeUnknown = iota
	TypeFolder
	TypeOffice
	TypeVideo
	TypeAudio
	TypeText
	TypeImage
)

// Object is a file or directory entry.
type Object struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Modified time.Time `json:"modified"`
	Sign     string    `json:"sign,omitempty"`
	Thumb    string    `json:"thumb,omitempty"`
	Type     int       `json:"type"`
	Path     string    `json:"path,omitempty"`
	Parent   string    `json:"parent,omitempty"`
	Provider string    `json:"provider,omitempty"`
	RawURL   string    `json:"raw_url,omitempty"`
	Readme   string    `json:"readme,omitempty"`
}

type ListRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
	Refresh  bool   `json:"refresh"`
}

type ListResult struct {
	Content  []Object `json:"content"`
	Total    int      `json:"total"`
	Readme   string   `json:"readme"`
	Write    bool     `json:"write"`
	Provider string   `json:"provider"`
}

type GetRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
}

// Search scopes.
const (
	ScopeAll = iota
	ScopeFolders
	ScopeFiles
)

type SearchRequest struct {
	Parent   string `json:"parent"`
	Keywords string `json:"keywords"`
	Scope    int    `json:"scope"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
	Password string `json:"password"`
}

type SearchResult struct {
	Content []Object `json:"content"`
	Total   int      `json:"total"`
}

type MkdirRequest struct {
	Path string `json:"path"`
}

type RenameRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type RemoveRequest struct {
	Dir   string   `json:"dir"`
	Names []string `json:"names"`
}

// Storage is a mounted storage backend (admin only).
type Storage struct {
	ID         int       `json:"id"`
	MountPath  string    `json:"mount_path"`
	Order      int       `json:"order"`
	Driver     string    `json:"driver"`
	Status     string    `json:"status"`
	Remark     string    `json:"remark"`
	Modified   time.Time `json:"modified"`
	Disabled   bool      `json:"disabled"`
	EnableSign bool      `json:"enable_sign"`
	WebProxy   bool      `json:"web_proxy"`
}

type StorageList struct {
	Content []Storage `json:"content"`
	Total   int       `json:"total"`
}
