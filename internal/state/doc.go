// Package state shares backend data between the poller and the UI.
//
// The poller writes through Store.Update; the UI reads through
// Store.Snapshot, which returns a copy so rendering never races with the
// next poll. A failed poll keeps the previous data and counts the failure;
// two in a row mark the snapshot offline.
//
// This is distinct from page state (internal/pagestate): Store holds server
// data that is refetched every poll and never persisted.
package state
