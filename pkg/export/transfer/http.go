package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// HTTPConfig configures the http_post method.
type HTTPConfig struct {
	URL string

	// ContentType of the request body.
	// Default: "text/csv; charset=utf-8"
	ContentType string

	// Headers are added to the request, e.g. Authorization.
	Headers map[string]string
}

// HTTPStrategy POSTs the raw file as the request body. Any 2xx response is
// a success.
type HTTPStrategy struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPStrategy creates an HTTPStrategy.
func NewHTTPStrategy(cfg HTTPConfig, timeout time.Duration) *HTTPStrategy {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/csv; charset=utf-8"
	}
	return &HTTPStrategy{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Target implements Strategy.
func (s *HTTPStrategy) Target() string { return s.cfg.URL }

// Perform implements Strategy.
func (s *HTTPStrategy) Perform(ctx context.Context, f File) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("%w: http_post url is empty", ErrNotConfigured)
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", s.cfg.ContentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	if info, err := file.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}
