// Package recordings fetches voice-recording transcripts from the remote
// recordings API and writes them into the primary collection as notes.
package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/murmur/internal/apperr"
)

// Recording is one transcribed voice recording.
type Recording struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	Duration   float64   `json:"duration_seconds"`
	Transcript string    `json:"transcript"`
	Summary    string    `json:"summary"`
	Tags       []string  `json:"tags"`
}

// Page is one page of recordings. Next is empty on the last page.
type Page struct {
	Items []Recording `json:"data"`
	Next  string      `json:"next_cursor"`
}

// Source lists recordings page by page. An empty cursor asks for the first
// page.
type Source interface {
	List(ctx context.Context, cursor string) (Page, error)
}

// RateLimitError is returned when the API answers 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("recordings: rate limited, retry after %s", e.RetryAfter)
	}
	return "recordings: rate limited"
}

func (e *RateLimitError) Unwrap() error { return apperr.ErrRateLimited }

// Client is an HTTP Source authenticated with a bearer token.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL, token string, pageSize int, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("recordings: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("recordings: unsupported scheme: %q", u.Scheme)
	}
	if token == "" {
		return nil, fmt.Errorf("recordings: %w: empty token", apperr.ErrUnauthorized)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(u.String(), "/"),
		token:    token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// List fetches one page of recordings.
func (c *Client) List(ctx context.Context, cursor string) (Page, error) {
	q := url.Values{}
	if c.pageSize > 0 {
		q.Set("limit", strconv.Itoa(c.pageSize))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.baseURL + "/recordings"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("recordings: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "murmur/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("recordings: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Page{}, fmt.Errorf("recordings: HTTP %d: %w", resp.StatusCode, apperr.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Page{}, &RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, fmt.Errorf("recordings: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var page Page
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("recordings: decode page: %w", err)
	}
	return page, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsRateLimited reports whether err came from a 429 answer.
func IsRateLimited(err error) bool {
	return errors.Is(err, apperr.ErrRateLimited)
}
