// Package logtail reads the end of the client's log file for the Logs page.
//
// Read keeps only the last maxLines lines in a ring buffer, so memory stays
// bounded no matter how large the file has grown. A missing file is not an
// error: the client may not have logged anything yet.
//
// Parse understands the JSON lines written by internal/logging (zap's
// production encoder with an ISO8601 "ts" key). Lines that are not JSON are
// kept as plain messages rather than dropped.
package logtail
