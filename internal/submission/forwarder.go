// Package submission posts accepted form records to a remote endpoint. It is
// only wired when forwarding is enabled in configuration.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second

	// EndpointPath is the path records are posted to, below the base URL.
	EndpointPath = "/api/submissions/"
)

// ErrMissingBaseURL is returned when the forwarder has nowhere to post.
var ErrMissingBaseURL = errors.New("submission: base URL is required")

// Observer records forward attempts.
type Observer interface {
	ObserveForward(status string, seconds float64)
}

// Forwarder posts records as JSON.
type Forwarder struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	observer   Observer
}

var _ forms.Forwarder = (*Forwarder)(nil)

// NewForwarder creates a forwarder posting below baseURL.
func NewForwarder(baseURL string, logger *logging.Logger, observer Observer) (*Forwarder, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("submission: invalid base URL: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Forwarder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		observer:   observer,
	}, nil
}

// Forward posts rec to <base>/api/submissions/<form>. Non-2xx responses and
// transport failures are logged and returned; there is no retry.
func (f *Forwarder) Forward(ctx context.Context, rec forms.SubmissionRecord) error {
	start := time.Now()
	err := f.post(ctx, rec)
	status := "ok"
	if err != nil {
		status = "error"
		f.logger.Error("submission forward failed", "form", rec.Form, "error", err)
	} else {
		f.logger.Info("submission forwarded", "form", rec.Form)
	}
	if f.observer != nil {
		f.observer.ObserveForward(status, time.Since(start).Seconds())
	}
	return err
}

func (f *Forwarder) post(ctx context.Context, rec forms.SubmissionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("submission: failed to encode record: %w", err)
	}

	endpoint := f.baseURL + EndpointPath + url.PathEscape(rec.Form)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submission: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submission: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submission: endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
