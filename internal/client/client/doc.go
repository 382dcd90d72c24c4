// Package client talks to the gophauth gRPC server on behalf of the CLI.
//
// GRPCClient injects the access token into protected calls and, when the
// server reports it expired, rotates the refresh token once and retries.
// Status codes are mapped to sentinel errors matched with errors.Is.
// InitDatabase opens the SQLite file that keeps the session between runs.
package client
