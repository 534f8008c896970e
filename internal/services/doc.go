// Package services implements the [Service] interface against an OpenList (AList compatible) server.
//
// # Transport
//
// [APIService] is a thin layer over an [http.Client]. In production the client comes from
// [pipeline.NewClient], so every call passes the connectivity gate, is retried on transient
// failures and carries the stored bearer token. The service itself never touches credentials.
//
// # Envelope
//
// Every endpoint answers with {code, message, data}. A call succeeds only when code is 200.
// Both non-2xx HTTP statuses and non-200 envelope codes become a [*pipeline.Error] of kind
// [pipeline.KindServer] whose message comes from [pipeline.StatusText], extended with the
// server's own message when there is one.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthFailed] : login rejected (400/401/403)
//   - [shared.ErrNotAuthenticated] : token missing or expired (401 on other calls)
//   - [shared.ErrNotFound] : path or endpoint not found
//   - [shared.ErrServiceUnavailable] : 503
//   - [shared.ErrAPIRequest] : transport failure outside the pipeline or malformed response
//
// Network failures classified by the pipeline are returned unchanged.
//
// # Endpoints
//
//   - POST /api/auth/login, GET /api/auth/me, POST /api/auth/logout
//   - POST /api/fs/list, /api/fs/get, /api/fs/search, /api/fs/mkdir, /api/fs/rename, /api/fs/remove
//   - GET /api/admin/storage/list
package services
