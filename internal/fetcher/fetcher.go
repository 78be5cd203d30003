package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrResponseStatusNotOK = errors.New("response returned non-200 status code")
	ErrResponseStatus404   = errors.New("response returned 404 status code")
)

type httpGetFunc func(ctx context.Context, url string) (resp *http.Response, err error)

// Fetcher downloads remote images as streams. The HTTP getter is a function
// so tests can swap it without a real server.
type Fetcher struct {
	getter httpGetFunc
}

func New(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	getFunc := func(ctx context.Context, url string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return client.Do(req)
	}

	return &Fetcher{getFunc}
}

// Fetch returns the response body of url as a stream. The caller owns the
// returned ReadCloser and must close it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	response, err := f.getter(ctx, strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", url, err)
	}

	if response.StatusCode == http.StatusNotFound {
		response.Body.Close()
		return nil, ErrResponseStatus404
	}
	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		return nil, ErrResponseStatusNotOK
	}

	return response.Body, nil
}
