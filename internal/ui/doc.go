// Package ui is the Bubble Tea front end of the checklist client.
//
// Five pages share one header and command bar: Dashboard, MOPs,
// Assessments, History and Logs. Backend data arrives two ways. The
// dashboard reads the poller's state.Store snapshot on every tick; the
// other pages fetch on demand through the API interface and keep the
// result on the Model.
//
// # Page state
//
// Everything the user chose on a page (selected row, filters, sort,
// search, page number, open dialogs) is kept in a pagestate.Manager under
// the page's key ("/mops", "/assessments", ...), not on the Model. That
// makes it survive page switches and restarts for up to a day. Page
// switches call Manager.Navigate, which closes dialogs left open on the
// page being entered, so coming back to a page never lands inside a stale
// confirm box.
//
// # Key bindings
//
//   - 1-5, tab/shift+tab: switch page; esc: dashboard
//   - j/k, g/G: move selection; n/p: next/previous page
//   - f: filter; s/S: sort key/direction; /: search
//   - enter: run a MOP or open a run; a/x: approve/reject a MOP
//   - Space: follow or pause the log tail
//   - C: forget the current page's saved state
//   - T: cycle theme; ?: help; e or ctrl+c: quit
package ui
