package zcash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Limiter admits outbound calls. One instance is shared by reference across
// every client so the ceiling applies to the process, not per endpoint.
type Limiter interface {
	Execute(ctx context.Context, fn func() error) error
}

// HTTPClient implements RPCClient against one zcashd endpoint using
// HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	limiter     Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum total attempts per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithLimiter routes every outbound attempt through the shared rate limiter.
func WithLimiter(l Limiter) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = l
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new zcashd RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint address with credentials and
// query parameters stripped.
func (c *HTTPClient) Endpoint() string {
	return RedactEndpoint(c.endpoint)
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a protocol-level rejection returned by the remote. It is
// never retried: the same request would be rejected again.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-200 status from the remote before any JSON-RPC
// envelope could be read. 5xx and 429 are transient and retried.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying: server faults and
// rate limiting. Any other status reflects a request the remote would
// reject again.
func (e *HTTPError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport faults, 5xx and 429 are retried; any other HTTP status and an
// error payload in the JSON-RPC envelope fail immediately.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		rpcResp, err := c.attempt(ctx, body)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && !httpErr.Transient() {
				return err
			}
			lastErr = err
			continue
		}

		if rpcResp.Error != nil {
			// Protocol-level rejection, not retried.
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// attempt submits one request through the shared limiter and decodes the
// JSON-RPC envelope.
func (c *HTTPClient) attempt(ctx context.Context, body []byte) (*rpcResponse, error) {
	var rpcResp rpcResponse

	do := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}

		return nil
	}

	if c.limiter != nil {
		if err := c.limiter.Execute(ctx, do); err != nil {
			return nil, err
		}
		return &rpcResp, nil
	}

	if err := do(); err != nil {
		return nil, err
	}
	return &rpcResp, nil
}

// GetBlockHash retrieves the block hash at the given height.
func (c *HTTPClient) GetBlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetBlock retrieves a block by hash at verbosity 1, which returns block
// metadata plus the ordered list of transaction ids.
func (c *HTTPClient) GetBlock(ctx context.Context, hash string) (*BlockRecord, error) {
	var block BlockRecord
	if err := c.call(ctx, "getblock", []interface{}{hash, 1}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// getRawTransactionResult is the verbose getrawtransaction response. Only
// the hex payload is consumed; the rest of the envelope is discarded.
type getRawTransactionResult struct {
	Hex string `json:"hex"`
}

// GetRawTransaction retrieves the hex-encoded payload of a transaction.
func (c *HTTPClient) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	var result getRawTransactionResult
	if err := c.call(ctx, "getrawtransaction", []interface{}{txid, 1}, &result); err != nil {
		return "", err
	}
	return result.Hex, nil
}

// GetBlockCount retrieves the current chain tip height.
func (c *HTTPClient) GetBlockCount(ctx context.Context) (int64, error) {
	var count int64
	if err := c.call(ctx, "getblockcount", nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

var _ RPCClient = (*HTTPClient)(nil)
