package transcription

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// Recognizer converts one stored audio blob into text. The blob path is the
// fully qualified object path handed out at upload authorization time.
// Punctuation enables automatic punctuation, used for live preview calls.
type Recognizer interface {
	Recognize(ctx context.Context, blobPath string, punctuation bool) (string, error)
}

// Config contains transcription client configuration
type Config struct {
	LanguageCode    string
	SampleRateHertz int
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"totalRequests"`
	SuccessRequests uint64        `json:"successRequests"`
	FailedRequests  uint64        `json:"failedRequests"`
	SuccessRate     float64       `json:"successRate"`
	TotalRetries    uint64        `json:"totalRetries"`
	AvgResponseTime time.Duration `json:"avgResponseTime"`
	ActiveRequests  int           `json:"activeRequests"`
}

// Client wraps a Recognizer backend with rate limiting, retries and
// statistics. It satisfies Recognizer itself so callers stay unaware of the
// wrapping.
type Client struct {
	config    Config
	backend   Recognizer
	semaphore chan struct{} // Rate limiting semaphore

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Compile-time assertion that Client satisfies the Recognizer interface.
var _ Recognizer = (*Client)(nil)

// NewClient creates a transcription client around the given backend.
func NewClient(config Config, backend Recognizer) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Client{
		config:    config,
		backend:   backend,
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Recognize sends one blob for transcription, retrying retryable failures
// with exponential backoff. Each attempt runs under the configured timeout.
func (c *Client) Recognize(ctx context.Context, blobPath string, punctuation bool) (string, error) {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doRecognize(ctx, blobPath, punctuation)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return text, nil
		}

		lastErr = err

		// Check if error is retryable
		if !c.isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return "", fmt.Errorf("transcription failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRecognize performs a single backend call under the per-attempt timeout
func (c *Client) doRecognize(ctx context.Context, blobPath string, punctuation bool) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	return c.backend.Recognize(attemptCtx, blobPath, punctuation)
}

// isRetryableError determines if an error is retryable
func (c *Client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()

	// Transient transport and server-side failures are retryable
	for _, marker := range []string{
		"deadline exceeded",
		"unavailable",
		"connection",
		"timeout",
		"refused",
		"internal error",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close waits for all active requests to complete.
func (c *Client) Close() error {
	for i := 0; i < cap(c.semaphore); i++ {
		c.semaphore <- struct{}{}
	}

	return nil
}
