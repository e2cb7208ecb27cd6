package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// ErrResponseTooLarge marks a body over the configured size cap. Not retried.
var ErrResponseTooLarge = errors.New("response body too large")

// RawResponse is what a single GET produced, body fully read
type RawResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Header      http.Header
}

// RawGetter is the raw HTTP GET primitive the fetch engine retries.
// A non-nil error means no HTTP response was obtained (DNS, TCP, TLS, body read, cancellation).
type RawGetter interface {
	Get(ctx context.Context, url string, header http.Header) (*RawResponse, error)
}

// HTTPGetter implements RawGetter over an *http.Client
type HTTPGetter struct {
	client   *http.Client
	maxBytes int64 // 0 = unlimited
}

// NewHTTPGetter wraps client. Bodies larger than maxBytes fail the attempt.
func NewHTTPGetter(client *http.Client, maxBytes int64) *HTTPGetter {
	return &HTTPGetter{client: client, maxBytes: maxBytes}
}

// Get issues one GET request and reads the whole body
func (g *HTTPGetter) Get(ctx context.Context, url string, header http.Header) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if g.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, g.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if g.maxBytes > 0 && int64(len(body)) > g.maxBytes {
		return nil, fmt.Errorf("%w: %w: limit %d bytes", utils.ErrResponseBodyRead, ErrResponseTooLarge, g.maxBytes)
	}

	return &RawResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
	}, nil
}
