// Package wotkit is a thin client for the read-only parts of the WoTKit REST
// API used by the dashboard: sensor data, sensor fields and sensor search.
package wotkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/modules/sensors/types"
)

const (
	DefaultBaseURL       = "http://wotkit.sensetecnic.com/api/v1"
	DefaultReadingsLimit = 10
	DefaultTimeout       = 10 * time.Second

	requestIDHeader = "X-Request-Id"
)

type Options struct {
	BaseURL string
	// Timeout bounds every request; expiry surfaces as a NetworkError.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Client struct {
	resty   *resty.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Client{
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	c.resty = resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.Debug("wotkit response",
				"method", resp.Request.Method,
				"url", resp.Request.URL,
				"status", resp.StatusCode(),
				"request_id", resp.Request.Header.Get(requestIDHeader),
				"duration_ms", resp.Time().Milliseconds(),
			)
			return nil
		})
	return c
}

type rawReading struct {
	ID           int64    `json:"id"`
	Value        *float64 `json:"value"`
	TimestampISO string   `json:"timestamp_iso"`
}

type rawField struct {
	Name  *string `json:"name"`
	Value any     `json:"value"`
}

// FetchReadings returns at most limit of the most recent readings of
// sensorID, most recent first. A limit of zero or less asks for
// DefaultReadingsLimit readings.
func (c *Client) FetchReadings(ctx context.Context, sensorID string, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		limit = DefaultReadingsLimit
	}
	req := c.newRequest(ctx).
		SetPathParam("id", sensorID).
		SetQueryParam("beforeE", strconv.Itoa(limit))

	var raw []rawReading
	if err := c.get(req, OpFetchReadings, sensorID, "/sensors/{id}/data", &raw); err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(raw))
	for i, r := range raw {
		if r.Value == nil {
			return nil, c.malformed(OpFetchReadings, sensorID, fmt.Sprintf("reading %d (id %d) has no value", i, r.ID), nil)
		}
		out = append(out, types.Reading{ID: r.ID, Value: *r.Value, TimestampISO: r.TimestampISO})
	}
	return out, nil
}

// FetchFields returns the metadata fields of sensorID in API order.
func (c *Client) FetchFields(ctx context.Context, sensorID string) ([]types.Field, error) {
	req := c.newRequest(ctx).SetPathParam("id", sensorID)

	var raw []rawField
	if err := c.get(req, OpFetchFields, sensorID, "/sensors/{id}/fields", &raw); err != nil {
		return nil, err
	}

	out := make([]types.Field, 0, len(raw))
	for i, f := range raw {
		if f.Name == nil || *f.Name == "" {
			return nil, c.malformed(OpFetchFields, sensorID, fmt.Sprintf("field %d has no name", i), nil)
		}
		out = append(out, types.Field{Name: *f.Name, Value: f.Value})
	}
	return out, nil
}

// SearchSensors lists sensors matching query. An empty query is sent as is;
// what the API returns for it is up to the API.
func (c *Client) SearchSensors(ctx context.Context, query string) ([]types.SensorSummary, error) {
	req := c.newRequest(ctx).SetQueryParam("text", query)

	var out []types.SensorSummary
	if err := c.get(req, OpSearchSensors, query, "/sensors", &out); err != nil {
		return nil, err
	}
	for i, s := range out {
		if s.ID == "" {
			return nil, c.malformed(OpSearchSensors, query, fmt.Sprintf("sensor %d has no id", i), nil)
		}
	}
	if out == nil {
		out = []types.SensorSummary{}
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	return c.resty.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString())
}

func (c *Client) get(req *resty.Request, op string, target string, path string, out any) error {
	start := time.Now()
	resp, err := req.Get(path)
	if err != nil {
		c.metrics.ObserveRequest(op, "network_error", time.Since(start))
		c.logger.Warn("wotkit request failed", "op", op, "target", target, "error", err)
		return &NetworkError{Op: op, Target: target, Err: err}
	}
	if resp.IsError() {
		c.metrics.ObserveRequest(op, "network_error", time.Since(start))
		c.logger.Warn("wotkit request failed", "op", op, "target", target, "status", resp.StatusCode())
		return &NetworkError{
			Op:         op,
			Target:     target,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(resp.Status()),
		}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		c.metrics.ObserveRequest(op, "malformed", time.Since(start))
		return c.malformed(op, target, "decode body", err)
	}
	c.metrics.ObserveRequest(op, "ok", time.Since(start))
	return nil
}

func (c *Client) malformed(op string, target string, reason string, err error) error {
	c.logger.Warn("wotkit malformed response", "op", op, "target", target, "reason", reason, "error", err)
	return &MalformedResponseError{Op: op, Target: target, Reason: reason, Err: err}
}
