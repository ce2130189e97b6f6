// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the request/response side of a chat session:
// submitting a question with its session and document context.
//
// The answer does not come back here. The service streams it to the
// session's websocket, keyed by the request's channel.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSendPath is the send endpoint under the API base URL.
	DefaultSendPath = "/api/v1/chat/vectorstore"

	// MaxResponseSize caps the response body read.
	MaxResponseSize = 1 << 20

	userAgent = "docchat/1.0"
)

// SendResponse is the opaque success payload.
type SendResponse struct {
	Status int
	Body   json.RawMessage
}

// Client posts questions to the service.
type Client struct {
	baseURL    string
	sendPath   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sendPath:   DefaultSendPath,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
}

// WithSendPath overrides the send endpoint path.
func (c *Client) WithSendPath(path string) *Client {
	if path != "" {
		c.sendPath = path
	}
	return c
}

// WithTimeout bounds each send. Zero means no timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.logger = l.Named("api")
	return c
}

// Endpoint returns the full send URL.
func (c *Client) Endpoint() string {
	return c.baseURL + c.sendPath
}

// Send submits req. Any failure is returned as *SendRejectedError, and a
// failure is final: the client does not retry.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &SendRejectedError{Detail: err.Error(), Err: err}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &SendRejectedError{Detail: "could not encode request", Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, &SendRejectedError{Detail: fmt.Sprintf("invalid endpoint: %v", err), Err: err}
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("send failed", zap.String("channel", req.Channel), zap.Error(err))
		return nil, &SendRejectedError{Detail: transportDetail(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, &SendRejectedError{Status: resp.StatusCode, Detail: err.Error(), Err: err}
	}

	c.logger.Debug("send response",
		zap.String("channel", req.Channel),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := parseDetail(data)
		if detail == "" {
			detail = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		c.logger.Warn("send rejected",
			zap.String("channel", req.Channel),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return nil, &SendRejectedError{Status: resp.StatusCode, Detail: detail}
	}

	return &SendResponse{Status: resp.StatusCode, Body: json.RawMessage(data)}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func transportDetail(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	}
	return fmt.Sprintf("could not reach server: %v", err)
}
