package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one parsed log line.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Logger  string
	Message string
	Fields  map[string]any
	Raw     string
}

// reserved keys written by the zap production encoder.
var reserved = map[string]struct{}{
	"ts": {}, "level": {}, "logger": {}, "msg": {}, "caller": {}, "stacktrace": {},
}

// Parse decodes a zap JSON line. Anything else comes back as an info entry
// whose message is the raw line.
func Parse(line string) Entry {
	entry := Entry{Level: zapcore.InfoLevel, Message: line, Raw: line}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return entry
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return entry
	}

	if msg, ok := payload["msg"].(string); ok {
		entry.Message = msg
	}
	if name, ok := payload["logger"].(string); ok {
		entry.Logger = name
	}
	if lvl, ok := payload["level"].(string); ok {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			entry.Level = parsed
		}
	}
	if ts, ok := payload["ts"].(string); ok {
		if parsed, err := time.Parse("2006-01-02T15:04:05.000Z0700", ts); err == nil {
			entry.Time = parsed
		} else if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Time = parsed
		}
	}
	for k, v := range payload {
		if _, skip := reserved[k]; skip {
			continue
		}
		if entry.Fields == nil {
			entry.Fields = make(map[string]any)
		}
		entry.Fields[k] = v
	}
	return entry
}

// FieldString renders the extra fields as sorted key=value pairs.
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, e.Fields[k])
	}
	return strings.Join(parts, " ")
}

// Filter keeps entries at or above minLevel whose message or fields contain
// text, case-insensitively.
func Filter(entries []Entry, minLevel zapcore.Level, text string) []Entry {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Level < minLevel {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Message+" "+e.FieldString()), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseAll parses every line.
func ParseAll(lines []string) []Entry {
	entries := make([]Entry, len(lines))
	for i, line := range lines {
		entries[i] = Parse(line)
	}
	return entries
}
