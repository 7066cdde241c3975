package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/cache"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
	"github.com/matzehuels/knotview/pkg/observability"
)

const httpTimeout = 30 * time.Second

// HTTPLoader fetches payloads from a data server:
//
//	GET <base>/getLayer?layer=<id>
//	GET <base>/getJoinedJson?layer=<id>
//	GET <base>/getCamera?camera=<ref>
//
// Transport failures and 5xx responses are retried with backoff.
type HTTPLoader struct {
	base    string
	http    *http.Client
	backoff cache.Backoff
	headers map[string]string
	logger  *log.Logger
}

// HTTPOption configures an HTTPLoader.
type HTTPOption func(*HTTPLoader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(l *HTTPLoader) {
		if c != nil {
			l.http = c
		}
	}
}

// WithBackoff replaces the retry policy.
func WithBackoff(b cache.Backoff) HTTPOption {
	return func(l *HTTPLoader) { l.backoff = b }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(h map[string]string) HTTPOption {
	return func(l *HTTPLoader) { l.headers = h }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) HTTPOption {
	return func(l *HTTPLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewHTTPLoader creates a loader for the data server at baseURL.
func NewHTTPLoader(baseURL string, opts ...HTTPOption) (*HTTPLoader, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	l := &HTTPLoader{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeout},
		backoff: cache.DefaultBackoff,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Source identifies the server in cache keys.
func (l *HTTPLoader) Source() string { return l.base }

// GetLayer implements Loader.
func (l *HTTPLoader) GetLayer(ctx context.Context, id string) (*layer.Data, error) {
	var data layer.Data
	if err := l.get(ctx, "/getLayer", "layer", id, &data); err != nil {
		return nil, err
	}
	if data.ID == "" {
		data.ID = id
	}
	return &data, nil
}

// GetJoinedJSON implements Loader.
func (l *HTTPLoader) GetJoinedJSON(ctx context.Context, layerID string) (*layer.Joined, error) {
	var joined layer.Joined
	if err := l.get(ctx, "/getJoinedJson", "layer", layerID, &joined); err != nil {
		return nil, err
	}
	return &joined, nil
}

// GetCameraParameters implements Loader.
func (l *HTTPLoader) GetCameraParameters(ctx context.Context, ref string) (*grammar.CameraParams, error) {
	var params grammar.CameraParams
	if err := l.get(ctx, "/getCamera", "camera", ref, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func (l *HTTPLoader) get(ctx context.Context, path, param, value string, v any) error {
	if err := errors.ValidateIdentifier(param, value); err != nil {
		return err
	}
	u := l.base + path + "?" + url.Values{param: {value}}.Encode()

	err := l.backoff.Retry(ctx, func() error {
		body, err := l.doRequest(ctx, u, path)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.GetCode(err) != "":
		return err
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s %s", param, value)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s %s", param, value)
	}
}

func (l *HTTPLoader) doRequest(ctx context.Context, rawURL, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range l.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	hooks := observability.HTTP()
	host := req.URL.Host
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := l.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		l.logger.Debug("request failed", "url", rawURL, "err", err)
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	l.logger.Debug("response", "url", rawURL, "status", resp.StatusCode, "duration", time.Since(start))

	if err := checkStatus(resp.StatusCode, rawURL); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int, rawURL string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeResourceNotFound, ErrNotFound, "%s", rawURL)
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, code))
	default:
		return errors.Wrap(errors.ErrCodeNetwork, cache.ErrNetwork, "%s: status %d", rawURL, code)
	}
}
