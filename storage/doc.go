// Package storage provides persistent key-value stores for the session's
// credential and device identity keys.
//
// Memory keeps values in process and is what tests use in place of browser
// storage. BunStore persists values in a SQLite table through bun so a CLI or
// desktop client keeps its token across restarts. Prefixed scopes keys of any
// store to one application.
package storage
