package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrImageTooLarge marks a source image above the configured byte ceiling.
// Attempts that need the raw bytes should short-circuit to empty output on
// this error; providers that pass the original URL through are unaffected.
var ErrImageTooLarge = errors.New("image exceeds size ceiling")

// Scratch shares one fetched-and-decoded image across every attempt of a
// single vision chain run. It lives exactly as long as the run: fetch happens
// at most once, derived encodings are computed from the same bytes, and the
// too-large verdict is sticky so no attempt re-downloads.
type Scratch struct {
	url      string
	maxBytes int64
	client   *http.Client

	once     sync.Once
	data     []byte
	mime     string
	tooLarge bool
	err      error

	b64Once sync.Once
	b64     string
}

func NewScratch(url string, maxBytes int64, client *http.Client) *Scratch {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scratch{url: url, maxBytes: maxBytes, client: client}
}

// URL returns the original source URL, for providers that accept pass-through
// references regardless of size.
func (s *Scratch) URL() string { return s.url }

// Bytes fetches the image on first use and serves the cached copy afterwards.
func (s *Scratch) Bytes(ctx context.Context) ([]byte, error) {
	s.once.Do(func() { s.fetch(ctx) })
	if s.tooLarge {
		return nil, ErrImageTooLarge
	}
	return s.data, s.err
}

// Base64 derives the standard encoding from the cached bytes, once.
func (s *Scratch) Base64(ctx context.Context) (string, error) {
	b, err := s.Bytes(ctx)
	if err != nil {
		return "", err
	}
	s.b64Once.Do(func() { s.b64 = base64.StdEncoding.EncodeToString(b) })
	return s.b64, nil
}

// MIME returns the sniffed content type of the cached bytes, or empty when
// the image was never fetched successfully.
func (s *Scratch) MIME() string { return s.mime }

func (s *Scratch) fetch(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.err = fmt.Errorf("build image request: %w", err)
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.err = fmt.Errorf("fetch image: %w", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.err = fmt.Errorf("fetch image: HTTP %d", resp.StatusCode)
		return
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		s.err = fmt.Errorf("read image body: %w", err)
		return
	}
	if int64(len(data)) > limit {
		s.tooLarge = true
		return
	}
	s.data = data
	s.mime = http.DetectContentType(data)
}
