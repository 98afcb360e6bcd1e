// Package cli provides the interactive Sejong command-line client.
//
// It wires configuration, the local account store, the refreshing HTTP
// transport, and an interactive REPL for identity operations. Typical flow:
// resolve the stored session at startup, then execute user commands.
//
// Key features:
//   - Login / Logout (password and federated)
//   - Guest mode
//   - Account picker: list, switch, remove stored accounts
//   - Manual token refresh and identity inspection
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
