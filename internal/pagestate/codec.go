package pagestate

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"
)

// compressedPrefix tags envelopes holding base64 of an xz stream of JSON.
// Anything else is read as plain JSON.
const compressedPrefix = "xz1:"

// compressMinBytes is the smallest JSON payload worth compressing. Below it
// the xz framing and base64 outweigh any saving.
const compressMinBytes = 512

// minDictCap is the smallest dictionary the xz writer accepts.
const minDictCap = 4096

// maxDecodedBytes bounds decompression so a corrupt slot cannot balloon memory.
const maxDecodedBytes = 64 << 20

// Encode converts the cache to its stored string form. It never fails: if
// compression breaks it falls back to plain JSON, and attributes that cannot
// be marshaled are dropped rather than losing the whole write.
func Encode(c Cache) string {
	raw, err := json.Marshal(normalize(c))
	if err != nil {
		raw = marshalLossy(c)
	}
	if len(raw) < compressMinBytes {
		return string(raw)
	}
	packed, err := compress(raw)
	if err != nil || len(packed) >= len(raw) {
		return string(raw)
	}
	return packed
}

// Decode parses a stored envelope. It returns false for any malformed input,
// which callers treat as an empty cache.
func Decode(s string) (Cache, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	raw := []byte(s)
	if strings.HasPrefix(s, compressedPrefix) {
		unpacked, err := decompress(s[len(compressedPrefix):])
		if err != nil {
			return nil, false
		}
		raw = unpacked
	}

	var pages map[string]map[string]any
	if err := json.Unmarshal(raw, &pages); err != nil || pages == nil {
		return nil, false
	}

	c := make(Cache, len(pages))
	for key, attrs := range pages {
		if attrs == nil {
			continue
		}
		ps := PageState(attrs)
		if stamp, ok := ps.LastUpdated(); ok {
			ps[LastUpdatedKey] = stamp
		}
		c[key] = ps
	}
	return c, true
}

// normalize maps a nil cache to an empty object so the envelope is never "null".
func normalize(c Cache) Cache {
	if c == nil {
		return Cache{}
	}
	return c
}

func marshalLossy(c Cache) []byte {
	kept := make(map[string]map[string]json.RawMessage, len(c))
	for key, ps := range c {
		attrs := make(map[string]json.RawMessage, len(ps))
		for name, v := range ps {
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			attrs[name] = b
		}
		kept[key] = attrs
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func compress(raw []byte) (string, error) {
	var buf bytes.Buffer
	cfg := xz.WriterConfig{DictCap: dictCapFor(len(raw))}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close xz writer: %w", err)
	}
	return compressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// dictCapFor sizes the xz dictionary to the payload instead of the 8 MiB
// default; nothing larger than the store ceiling is ever written.
func dictCapFor(n int) int {
	return min(max(n, minDictCap), DefaultMaxBytes)
}

func decompress(encoded string) ([]byte, error) {
	packed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	r, err := xz.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, fmt.Errorf("open xz stream: %w", err)
	}
	raw, err := io.ReadAll(io.LimitReader(r, maxDecodedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(raw) > maxDecodedBytes {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecodedBytes)
	}
	return raw, nil
}
