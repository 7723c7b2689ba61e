// Package auth provides optional single-user authentication.
//
// Two modes exist. "none" (the default) skips authentication entirely,
// matching a reader running on a trusted machine. "local" protects the
// server with one bcrypt-hashed password and cookie sessions backed by
// SQLite, for installations exposed beyond localhost.
package auth
