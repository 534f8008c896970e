// Package models defines the OpenList wire types and the records olx keeps locally.
//
// The package contains two categories of types:
//
// 1. Wire types: request and response bodies of the OpenList REST API
//   - [Envelope] : the {code, message, data} wrapper around every response
//   - [User], [LoginRequest], [LoginResult] : account and session payloads
//   - [Object], [ListRequest], [ListResult], [GetRequest] : directory listings and single entries
//   - [SearchRequest], [SearchResult] : index search
//   - [Storage], [StorageList] : mounted storages (admin only)
//
// 2. Persistent entities: rows in the local SQLite database
//   - [PlayHistory] : a media file opened from a server, with play count and position
//   - [LoginAttempt] : one manual or automatic sign-in and its outcome
//
// Persistent entities implement the [Model] interface (ID, timestamps, validation).
// The [Repository] interface defines the CRUD operations the repositories package provides.
package models
