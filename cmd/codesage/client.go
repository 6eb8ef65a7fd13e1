// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Tests point commands at httptest servers through the address flag.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// serverClient provides HTTP access to a running codesage server.
type serverClient struct {
	baseURL string
	http    *http.Client
}

// newServerClient creates a client targeting addr, either host:port or a
// full URL.
func newServerClient(addr string) *serverClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &serverClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *serverClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return sageerr.Errorf(sageerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON sends body as JSON and decodes the JSON response into dest.
func (c *serverClient) postJSON(path string, body, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return sageerr.Errorf(sageerr.CodeCLIRequestFailure, "encoding request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return sageerr.Errorf(sageerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

// do sends req. Connection refusals return CodeCLIServerNotRunning; error
// responses carry the server's error code when it sent one.
func (c *serverClient) do(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return sageerr.Errorf(sageerr.CodeCLIServerNotRunning, "server is not running at %s", c.baseURL)
		}
		return sageerr.Errorf(sageerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return remoteError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return sageerr.Errorf(sageerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

type problemDetails struct {
	Detail string `json:"detail"`
	Errors []struct {
		Location string `json:"location"`
		Value    any    `json:"value"`
	} `json:"errors"`
}

func remoteError(status int, body []byte) error {
	var p problemDetails
	if json.Unmarshal(body, &p) == nil && p.Detail != "" {
		for _, e := range p.Errors {
			if code, ok := e.Value.(string); ok && e.Location == "error_code" && code != "" {
				return sageerr.New(sageerr.Code(code), p.Detail, sageerr.Field("status", status))
			}
		}
		return sageerr.New(sageerr.CodeCLIRequestFailure, fmt.Sprintf("server returned status %d: %s", status, p.Detail))
	}
	return sageerr.New(sageerr.CodeCLIRequestFailure,
		fmt.Sprintf("server returned status %d: %s", status, strings.TrimSpace(string(body))))
}

// isDialError returns true if err is a net dial error (connection refused,
// etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
