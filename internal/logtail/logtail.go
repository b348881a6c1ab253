package logtail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// chunkSize is how much of the file Read pulls per step, walking back from
// the end.
const chunkSize = 64 * 1024

// Read returns at most maxLines from the end of the file at path. Only the
// tail is read, so polling a large log stays cheap. A missing file yields
// no lines and no error.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	// Walk back until the buffer holds one newline more than needed, so
	// the first kept line is complete.
	var buf []byte
	offset := info.Size()
	newlines := 0
	for offset > 0 && newlines <= maxLines {
		n := min(int64(chunkSize), offset)
		offset -= n
		part := make([]byte, n)
		if _, err := file.ReadAt(part, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read log: %w", err)
		}
		newlines += bytes.Count(part, []byte{'\n'})
		buf = append(part, buf...)
	}

	text := strings.TrimSuffix(string(buf), "\n")
	if len(buf) == 0 {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	if offset > 0 {
		lines = lines[1:]
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}
