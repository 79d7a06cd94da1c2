// Package floodmonitor reads stations and alerts from the external flood
// monitor API.
package floodmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
)

// Client is an HTTP client for the flood monitor API. Responses may be either
// a bare JSON array or an object wrapping it under "data".
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a client rooted at baseURL, e.g. https://monitor.example/api.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// Stations lists every monitored gauge.
func (c *Client) Stations(ctx context.Context) ([]domain.MonitorStation, error) {
	var out []domain.MonitorStation
	if err := c.getList(ctx, "/stations", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	return out, nil
}

// Alerts lists every active alert.
func (c *Client) Alerts(ctx context.Context) ([]domain.FloodAlert, error) {
	var out []domain.FloodAlert
	if err := c.getList(ctx, "/alerts", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	return decodeList(body, out)
}

// decodeList accepts a bare array or {"data": [...]}. An object without a
// data array decodes as an empty list.
func decodeList(body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if body[0] == '[' {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
		return nil
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("flood monitor API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("flood monitor fetched", "path", path, "bytes", len(body))
	return body, nil
}
