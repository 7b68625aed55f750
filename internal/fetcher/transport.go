package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jlaffaye/ftp"

	"hgncmap/internal/config"
	"hgncmap/internal/logger"
	"hgncmap/pkg/utils"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// Transport opens a remote file for reading. Callers must close the
// returned reader.
type Transport interface {
	Open(ctx context.Context, remotePath string) (io.ReadCloser, error)
}

// NewTransport picks the transport matching the configured scheme.
func NewTransport(src config.SourceConfig, retry config.RetryPolicy, log *logger.Logger) (Transport, error) {
	switch src.Scheme {
	case "ftp":
		return NewFTPTransport(src.Server, retry.GetTimeout()), nil
	case "http", "https":
		return NewHTTPTransport(src.BaseURL(), &retry, log), nil
	}

	return nil, fmt.Errorf("%w: %s", config.ErrInvalidScheme, src.Scheme)
}

// HTTPTransport fetches files over HTTP(S) with config-driven retry logic.
type HTTPTransport struct {
	client      *http.Client
	retryPolicy *config.RetryPolicy
	helper      *utils.HTTPHelper
	logger      *logger.Logger
	baseURL     string
}

// NewHTTPTransport creates a transport rooted at baseURL.
func NewHTTPTransport(baseURL string, retryPolicy *config.RetryPolicy, log *logger.Logger) *HTTPTransport {
	if log == nil {
		log = logger.Discard()
	}

	return &HTTPTransport{
		client:      &http.Client{Timeout: retryPolicy.GetTimeout()},
		retryPolicy: retryPolicy,
		helper:      utils.NewHTTPHelper(),
		logger:      log,
		baseURL:     baseURL,
	}
}

// Open issues GET requests until one succeeds or the retry budget is spent.
func (t *HTTPTransport) Open(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	url := t.helper.JoinURL(t.baseURL, remotePath)

	var lastErr error

	// At least one request is always made.
	attempts := max(t.retryPolicy.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, t.retryPolicy.GetRetryDelay(attempt)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header = t.helper.BuildHeaders(nil)

		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, attempts, err)
			t.logger.Warn("download attempt failed", "url", url, "attempt", attempt, "error", err)

			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		resp.Body.Close()

		lastErr = fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
		if !isRetryableStatus(resp.StatusCode) {
			return nil, lastErr
		}

		t.logger.Warn("retryable status", "url", url, "attempt", attempt, "status", resp.StatusCode)
	}

	return nil, lastErr
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout:
		return true
	}

	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FTPTransport fetches files with an anonymous FTP login.
type FTPTransport struct {
	server  string
	timeout time.Duration
}

// NewFTPTransport creates a transport for server (host or host:port).
func NewFTPTransport(server string, timeout time.Duration) *FTPTransport {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "21")
	}

	return &FTPTransport{server: server, timeout: timeout}
}

// Open logs in and starts a RETR; closing the reader ends the session.
func (t *FTPTransport) Open(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	conn, err := ftp.Dial(t.server, ftp.DialWithContext(ctx), ftp.DialWithTimeout(t.timeout))
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", t.server, err)
	}

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		_ = conn.Quit()

		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		_ = conn.Quit()

		return nil, fmt.Errorf("ftp RETR %s: %w", remotePath, err)
	}

	return &ftpReader{resp: resp, conn: conn}, nil
}

type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpReader) Close() error {
	return errors.Join(r.resp.Close(), r.conn.Quit())
}
