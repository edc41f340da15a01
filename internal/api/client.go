// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "smiactl/internal/errors"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// Response is the envelope every endpoint returns.
type Response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Status  string          `json:"status"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// FileSystem describes one file system known to the server.
type FileSystem struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	MountPoint string `json:"mountPoint"`
}

// Client talks to the command execution API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for the server at baseURL (without the /api
// suffix). A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the API root including the /api prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute sends a canonical command line to the server. A response with
// status "error" is returned as an execution Error.
func (c *Client) Execute(ctx context.Context, command string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExecution, "encode command", err)
	}
	return c.do(ctx, http.MethodPost, "/execute", command, body)
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (Health, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return Health{}, "", err
	}
	var health Health
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &health); err != nil {
			return Health{}, "", apperrors.Wrap(apperrors.CodeTransport, "decode health payload", err)
		}
	}
	return health, resp.Message, nil
}

// FileSystems lists the file systems the server knows about.
func (c *Client) FileSystems(ctx context.Context) ([]FileSystem, error) {
	resp, err := c.do(ctx, http.MethodGet, "/filesystems", "", nil)
	if err != nil {
		return nil, err
	}
	var fileSystems []FileSystem
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &fileSystems); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeTransport, "decode file systems payload", err)
		}
	}
	return fileSystems, nil
}

func (c *Client) do(ctx context.Context, method, path, command string, body []byte) (*Response, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("url", url).Msg("request failed")
		return nil, Error{
			Kind:    KindConnection,
			Title:   "Connection error",
			Command: command,
			Message: fmt.Sprintf("cannot reach server at %s: %v", c.baseURL, err),
			Suggestions: []string{
				"Check that the server is running at " + c.baseURL,
				"Verify api_url in the configuration",
			},
			Err: apperrors.Wrap(apperrors.CodeTransport, method+" "+path, err),
		}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody*16))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, "read response", err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	var resp Response
	decodeErr := json.Unmarshal(data, &resp)

	if httpResp.StatusCode >= http.StatusBadRequest {
		message := resp.Message
		if decodeErr != nil || message == "" {
			message = errorText(data, httpResp.StatusCode)
		}
		return nil, c.executionError(command, message, httpResp.StatusCode)
	}
	if decodeErr != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, "decode response", decodeErr)
	}
	if strings.EqualFold(resp.Status, "error") {
		return &resp, c.executionError(command, resp.Message, 0)
	}
	return &resp, nil
}

func (c *Client) executionError(command, message string, status int) Error {
	return Error{
		Kind:        KindExecution,
		Title:       Title(command) + " failed",
		Command:     command,
		Message:     message,
		HTTPStatus:  status,
		Suggestions: Suggest(command, message),
		Err:         apperrors.New(apperrors.CodeExecution, message),
	}
}

func errorText(body []byte, status int) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return http.StatusText(status)
	}
	return text
}
