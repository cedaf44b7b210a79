package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the sandbox control API over HTTP. It implements Runtime.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// ClientConfig holds sandbox client configuration.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a sandbox API client. The Timeout only bounds the
// transport; per-call deadlines come from the caller's context.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type startProcessRequest struct {
	Command string   `json:"command"`
	Env     []string `json:"env,omitempty"`
}

type execStreamRequest struct {
	Command string `json:"command"`
}

type writeFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type mkdirRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) StartProcess(ctx context.Context, command string, env []string) (ProcessInfo, error) {
	var info ProcessInfo
	err := c.doJSON(ctx, http.MethodPost, "/processes", startProcessRequest{Command: command, Env: env}, &info)
	if err != nil {
		return ProcessInfo{}, err
	}
	return info, nil
}

func (c *Client) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	var procs []ProcessInfo
	if err := c.doJSON(ctx, http.MethodGet, "/processes", nil, &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

func (c *Client) Kill(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/processes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	return c.doJSON(ctx, http.MethodPost, "/files/write", writeFileRequest{Path: path, Content: content}, nil)
}

func (c *Client) Mkdir(ctx context.Context, path string, recursive bool) error {
	return c.doJSON(ctx, http.MethodPost, "/files/mkdir", mkdirRequest{Path: path, Recursive: recursive}, nil)
}

func (c *Client) ReadFileStream(ctx context.Context, path string) (string, error) {
	return c.doText(ctx, http.MethodGet, "/files/read?path="+url.QueryEscape(path), nil)
}

func (c *Client) ExecStream(ctx context.Context, command string) (string, error) {
	return c.doText(ctx, http.MethodPost, "/exec/stream", execStreamRequest{Command: command})
}

// doJSON performs a request with optional JSON body and decodes a JSON reply
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doText performs a request and returns the raw response body, which for the
// stream endpoints is framed protocol text.
func (c *Client) doText(ctx context.Context, method, path string, body any) (string, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp); err != nil {
		return "", err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("sandbox request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var ae apiError
	if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil || ae.Error == "" {
		return fmt.Errorf("sandbox API HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("sandbox API error: %s", ae.Error)
}
