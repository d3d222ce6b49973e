// Package cli provides the interactive FieldSafe command-line client.
//
// It wires configuration, the local document store, the sync engine and an
// interactive REPL that works with or without connectivity. Typical flow:
// start a background connectivity watcher, record findings offline, and sync
// when a connection is available.
//
// Key features:
//   - Record, list, show, close and delete inspection findings
//   - Attach photos to findings; uploads resume after the next sync
//   - Login (online with offline fallback against replicated accounts)
//   - Sync documents and pending photo uploads with the server
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
