// Package app wires configuration, the backend client, the page-state
// manager, the poller and the UI into the running client.
//
// Run is the composition root:
//
//	config.Config ──> checklist.NewClient   REST client
//	              ├─> OpenManager           slot + pagestate.Manager (Start)
//	              ├─> state.Store{}         shared dashboard snapshot
//	              └─> errgroup
//	                    ├─> runPoller       dashboard + recent runs, with backoff
//	                    └─> ui.Run          blocks until quit; cancels the group
//
// The poller never returns an error: failed polls are counted in the
// snapshot and retried with exponential backoff capped at 30 seconds, so the
// client survives backend restarts. Only setup failures (bad URL, unusable
// state directory) stop Run.
//
// OpenManager is shared with the CLI's state subcommands so both paths use
// the same slot, size ceiling and expiry settings.
package app
