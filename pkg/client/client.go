package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the node answers 404, e.g. for a block
	// index past the tip.
	ErrNotFound = errors.New("not found")

	// ErrMineCancelled is returned by Mine when the node abandoned the proof
	// search before finding a proof.
	ErrMineCancelled = errors.New("node abandoned the proof search")
)

// LogEntry is one attributed log line.
type LogEntry struct {
	User      string    `json:"user"`
	Text      string    `json:"log_entry"`
	Timestamp time.Time `json:"timestamp"`
}

// Block is a sealed block as served by the node.
type Block struct {
	Index        int        `json:"index"`
	Timestamp    time.Time  `json:"timestamp"`
	Entries      []LogEntry `json:"entries"`
	Proof        int64      `json:"proof"`
	PreviousHash string     `json:"previous_hash"`
}

// Chain is the response of GET /api/v1/chain.
type Chain struct {
	Length int     `json:"length"`
	Root   string  `json:"root"`
	Blocks []Block `json:"chain"`
}

// ValidationResult is the node's verdict on its own chain. Index and Reason
// are set only when Valid is false.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Index  int    `json:"index,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Client is the blocklog SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a writer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the node at baseURL.
//
// The default HTTP client has no timeout, since POST /mine can legitimately
// run for minutes; bound calls with their context.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Chain fetches every block together with the node's recorded root hash.
func (c *Client) Chain(ctx context.Context) (*Chain, error) {
	var chain Chain
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain", nil, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

// Block fetches a single block by its 1-based index.
func (c *Client) Block(ctx context.Context, index int) (*Block, error) {
	var block Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain/blocks/"+strconv.Itoa(index), nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Pending lists the entries waiting for the next block.
func (c *Client) Pending(ctx context.Context) ([]LogEntry, error) {
	var resp struct {
		Entries []LogEntry `json:"entries"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/entries/pending", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// AppendEntry buffers a log entry on the node and returns the index of the
// block it will land in. With a writer token user may be empty; the node then
// uses the token subject.
func (c *Client) AppendEntry(ctx context.Context, user, text string) (int, error) {
	reqBody := map[string]string{"user": user, "log_entry": text}
	var resp struct {
		BlockIndex int `json:"block_index"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/entries", reqBody, &resp); err != nil {
		return 0, err
	}
	return resp.BlockIndex, nil
}

// Mine asks the node to find a proof of work and seal the pending entries.
func (c *Client) Mine(ctx context.Context) (*Block, error) {
	var block Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/mine", nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// SealBlock seals the pending entries with a caller-supplied proof. The node
// does not check the proof.
func (c *Client) SealBlock(ctx context.Context, proof int64) (*Block, error) {
	var block Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/blocks", map[string]int64{"proof": proof}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Validate asks the node to walk its chain.
func (c *Client) Validate(ctx context.Context) (*ValidationResult, error) {
	var result ValidationResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain/validate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call builds a JSON request, sends it, and decodes a JSON response into
// respBody. reqBody and respBody may be nil.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", req.URL.Path, ErrNotFound)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %s", ErrMineCancelled, errorMessage(body))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("unauthorized: %s", errorMessage(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
