package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOpener opens a resolved audio URL as a chunked byte stream for the
// ingestion loop. The client has no overall timeout: the stream lives as long
// as the source does, and cancellation comes through the request context.
type HTTPOpener struct {
	client *http.Client
}

func NewHTTPOpener() *HTTPOpener {
	return &HTTPOpener{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

func (o *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open audio stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("audio stream returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
