// Package cli provides the interactive authctl command-line client.
//
// It wires configuration, the local session store, the API client and an
// interactive REPL. On start the stored session, if any, is restored so the
// user stays signed in across runs.
//
// Commands cover the whole account lifecycle:
//   - signup, resend, verify, createpw, login, social
//   - whoami, logout, forgot, delete
//   - invite, accept, invites, sweep
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
