package parse

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxDecompressedBytes caps inflated output when no explicit limit is given
const DefaultMaxDecompressedBytes int64 = 256 * 1024 * 1024

var gzipMagic = []byte{0x1f, 0x8b}

// IsGzipped reports whether a response should be treated as gzip:
// the URL path ends in ".gz" or the content type mentions gzip (both case-insensitive).
func IsGzipped(rawURL, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "gzip") {
		return true
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// DecompressGzip inflates data with the default output cap. See DecompressGzipLimit.
func DecompressGzip(data []byte) []byte {
	return DecompressGzipLimit(data, DefaultMaxDecompressedBytes)
}

// DecompressGzipLimit inflates a gzip payload.
// Input without the gzip magic prefix is returned unchanged (servers often send
// already-inflated bodies for .gz URLs). Any decode failure, or output larger
// than maxBytes, yields an empty slice. maxBytes <= 0 disables the cap.
func DecompressGzipLimit(data []byte, maxBytes int64) []byte {
	if !bytes.HasPrefix(data, gzipMagic) {
		return data
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return []byte{}
	}
	defer zr.Close()

	var src io.Reader = zr
	if maxBytes > 0 {
		src = io.LimitReader(zr, maxBytes+1)
	}
	out, err := io.ReadAll(src)
	if err != nil {
		return []byte{}
	}
	if maxBytes > 0 && int64(len(out)) > maxBytes {
		return []byte{}
	}
	return out
}
