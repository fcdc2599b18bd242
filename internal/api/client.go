// Package api is the HTTP client for the remote resource collaborator.
// Wire formats belong to the REST layer; this package only moves
// resources in and out and classifies failures as retryable or not.
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

	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// Error is a failed remote call. Retryable distinguishes transient
// failures (network, 5xx, 429) from validation-class 4xx responses.
type Error struct {
	StatusCode int
	Body       string
	Retryable  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote call failed: status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the failure is worth retrying. Transport
// errors without a status are treated as retryable.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return true
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logger.WithField("component", "api"),
	}
}

// Read fetches the full collection behind an endpoint.
func (c *Client) Read(ctx context.Context, endpoint string) ([]models.Resource, error) {
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var resources []models.Resource
	if err := json.Unmarshal(raw, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return resources, nil
}

func (c *Client) Create(ctx context.Context, endpoint string, payload models.Resource) (models.Resource, error) {
	raw, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	return decodeResource(raw)
}

func (c *Client) Update(ctx context.Context, endpoint, id string, payload models.Resource) (models.Resource, error) {
	raw, err := c.do(ctx, http.MethodPut, endpoint+"/"+id, payload)
	if err != nil {
		return nil, err
	}
	return decodeResource(raw)
}

func (c *Client) Delete(ctx context.Context, endpoint, id string) error {
	_, err := c.do(ctx, http.MethodDelete, endpoint+"/"+id, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("remote call failed")
		return nil, apiErr
	}
	return raw, nil
}

func decodeResource(raw []byte) (models.Resource, error) {
	var resource models.Resource
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	return resource, nil
}
