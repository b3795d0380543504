package snowflake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"knot/ragstore/internal/config"
)

const (
	// DefaultStatementTimeout is the server-side timeout (seconds) passed
	// with each statement unless the caller overrides it.
	DefaultStatementTimeout = 120
	// FetchStatementTimeout is the server-side timeout used for statements
	// whose rows we fetch.
	FetchStatementTimeout = 60

	defaultPollInterval = 500 * time.Millisecond
	defaultPollAttempts = 60
)

// ErrPollExhausted reports that an asynchronous statement did not complete
// within the polling budget. It is a distinct outcome, not an empty result:
// callers needing guaranteed completion must re-issue or extend the budget.
var ErrPollExhausted = errors.New("statement polling budget exhausted")

// RemoteError is a non-success response from the warehouse: either a non-2xx
// HTTP status, or an asynchronous statement that reported FAILED or ABORTED.
// Never retried at this layer.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("snowflake error (%d): %s", e.StatusCode, e.Message)
}

// Binding is one positional statement parameter. Every parameter travels as
// TEXT, including JSON-stringified vectors; type coercion happens in the SQL
// text itself.
type Binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Bindings maps 1-based positions (as strings) to parameters.
type Bindings map[string]Binding

// Text builds positional TEXT bindings from values, keyed "1", "2", ...
func Text(values ...string) Bindings {
	b := make(Bindings, len(values))
	for i, v := range values {
		b[strconv.Itoa(i+1)] = Binding{Type: "TEXT", Value: v}
	}
	return b
}

// ExecOptions tunes a single statement submission.
type ExecOptions struct {
	// TimeoutSecs overrides the server-side statement timeout.
	TimeoutSecs int
	// OmitDatabase / OmitSchema drop the scope qualifiers from the request,
	// needed when creating the database or schema themselves.
	OmitDatabase bool
	OmitSchema   bool
}

// Response is the decoded statement endpoint reply. Inline results carry
// Data; asynchronous ones carry a StatementHandle to poll.
type Response struct {
	Data            [][]string `json:"data"`
	StatementHandle string     `json:"statementHandle"`
	Message         string     `json:"message"`
}

type statementStatus struct {
	Status  string     `json:"status"`
	Data    [][]string `json:"data"`
	Message string     `json:"message"`
}

// Client submits SQL statements to the warehouse's REST statement endpoint.
// Execution is synchronous and blocking; there is no retry and no pooling
// beyond what net/http provides.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string

	pollInterval time.Duration
	pollAttempts int
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      cfg.Endpoint(),
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetPolling overrides the fixed poll interval and attempt ceiling.
func (c *Client) SetPolling(interval time.Duration, attempts int) {
	c.pollInterval = interval
	c.pollAttempts = attempts
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.TokenType != "" {
		req.Header.Set("X-Snowflake-Authorization-Token-Type", c.cfg.TokenType)
	}
}

func (c *Client) body(statement string, bindings Bindings, opts ExecOptions) map[string]interface{} {
	timeout := opts.TimeoutSecs
	if timeout == 0 {
		timeout = DefaultStatementTimeout
	}
	body := map[string]interface{}{
		"statement": statement,
		"timeout":   timeout,
		"warehouse": c.cfg.Warehouse,
	}
	if !opts.OmitDatabase {
		body["database"] = c.cfg.Database
	}
	if !opts.OmitSchema {
		body["schema"] = c.cfg.Schema
	}
	if c.cfg.Role != "" {
		body["role"] = c.cfg.Role
	}
	if len(bindings) > 0 {
		body["bindings"] = bindings
	}
	return body
}

// Execute submits one statement and returns the decoded response. A non-2xx
// status fails with *RemoteError carrying the status code and raw body. A
// malformed response body decodes to an empty Response rather than failing;
// callers treating "no data" as meaningful should keep that in mind.
func (c *Client) Execute(ctx context.Context, statement string, bindings Bindings, opts ExecOptions) (*Response, error) {
	jsonBody, err := json.Marshal(c.body(statement, bindings, opts))
	if err != nil {
		return nil, fmt.Errorf("encode statement body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	c.headers(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read statement response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var decoded Response
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			slog.WarnContext(ctx, "malformed statement response body, treating as empty", "error", err)
			decoded = Response{}
		}
	}
	return &decoded, nil
}

// ExecuteAndFetch submits one statement and resolves its rows: inline data is
// returned directly, otherwise the statement handle is polled at a fixed
// interval until completion, failure, or ErrPollExhausted.
func (c *Client) ExecuteAndFetch(ctx context.Context, statement string, bindings Bindings) ([][]string, error) {
	resp, err := c.Execute(ctx, statement, bindings, ExecOptions{TimeoutSecs: FetchStatementTimeout})
	if err != nil {
		return nil, err
	}
	if resp.Data != nil {
		return resp.Data, nil
	}
	if resp.StatementHandle == "" {
		return [][]string{}, nil
	}
	return c.poll(ctx, resp.StatementHandle)
}

func (c *Client) poll(ctx context.Context, handle string) ([][]string, error) {
	url := c.baseURL + "/" + handle
	for i := 0; i < c.pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		status, err := c.pollOnce(ctx, url)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case "SUCCESS":
			if status.Data != nil {
				return status.Data, nil
			}
		case "FAILED", "ABORTED":
			return nil, &RemoteError{StatusCode: http.StatusOK, Message: status.Message}
		}
	}
	return nil, fmt.Errorf("%w: statement %s after %d attempts", ErrPollExhausted, handle, c.pollAttempts)
}

func (c *Client) pollOnce(ctx context.Context, url string) (*statementStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.headers(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var status statementStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &status, nil
}
