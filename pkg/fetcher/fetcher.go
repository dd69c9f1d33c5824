package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"

	tradeerrors "github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
)

const (
	baseDelay = time.Second
	maxDelay  = 30 * time.Second

	// Some operators filter unknown clients; present a browser UA.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config controls the retry budget and per-attempt timeout.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// RequestTimeout bounds each individual attempt.
	RequestTimeout time.Duration
	// Sleep is injectable for tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		RequestTimeout: 10 * time.Second,
	}
}

// Client is a retrying HTTP GET client for idempotent reads. Transport
// failures and server-side statuses retry with exponential backoff plus
// jitter; client-side statuses fail immediately.
type Client struct {
	config Config
	http   *http.Client
}

// New creates a fetcher. The underlying transport dials IPv4 only: the
// exchange's edge resolves AAAA records it does not actually serve.
func New(config Config) *Client {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.Sleep == nil {
		config.Sleep = time.Sleep
	}

	dialer := &net.Dialer{Timeout: config.RequestTimeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
	}

	return &Client{
		config: config,
		http: &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: transport,
		},
	}
}

// Get fetches url, retrying transient failures up to the attempt budget.
// The terminal error is NETWORK for transport-class failures and API for
// HTTP statuses, retryable only for statuses >= 500.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		body, status, err := c.doGet(ctx, url)
		if err == nil && status < 400 {
			return body, nil
		}

		if err != nil {
			lastErr = err
			lastStatus = 0
			if !isTransportRetryable(err) {
				return nil, tradeerrors.NewNetworkError("fetcher", "Get", "request failed", err,
					tradeerrors.WithMetadata("url", url))
			}
		} else {
			lastStatus = status
			lastErr = fmt.Errorf("unexpected status %d", status)
			if status < 500 {
				// Client errors do not improve with retries.
				return nil, tradeerrors.NewAPIStatusError("fetcher", "Get", status,
					fmt.Sprintf("request rejected with status %d", status),
					tradeerrors.WithMetadata("url", url))
			}
		}

		if attempt < c.config.MaxAttempts {
			delay := backoffDelay(attempt)
			logger.Sugar.Warnf("Fetch attempt %d/%d for %s failed (%v), retrying in %v",
				attempt, c.config.MaxAttempts, url, lastErr, delay)
			c.config.Sleep(delay)
		}
	}

	logger.Sugar.Errorf("Fetch failed after %d attempts for %s: %v", c.config.MaxAttempts, url, lastErr)
	if lastStatus >= 500 {
		return nil, tradeerrors.NewAPIStatusError("fetcher", "Get", lastStatus,
			fmt.Sprintf("request failed with status %d after %d attempts", lastStatus, c.config.MaxAttempts),
			tradeerrors.WithMetadata("url", url))
	}
	return nil, tradeerrors.NewNetworkError("fetcher", "Get",
		fmt.Sprintf("request failed after %d attempts", c.config.MaxAttempts), lastErr,
		tradeerrors.WithMetadata("url", url))
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// backoffDelay is min(baseDelay * 2^(attempt-1) + U[0,1s), maxDelay),
// 1-indexed on the attempt that just failed.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			break
		}
	}
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// isTransportRetryable reports whether a request failed before producing
// an HTTP response in a way worth retrying: timeouts, resets, refusals,
// unreachable networks, and DNS failures.
func isTransportRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ETIMEDOUT,
		syscall.ENETUNREACH,
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return errors.Is(err, context.DeadlineExceeded)
}
