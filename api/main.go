// Package api implements the HTTP client for the backend notification API. It
// owns bearer-credential injection and the classification of failures into
// recoverable and unrecoverable errors; it holds no notification state.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/adminhub/notification-client/model"
)

// defaultRequestTimeout is the maximum time allowed for a single API call when
// the caller's context doesn't impose a shorter deadline.
const defaultRequestTimeout = 30 * time.Second

// CredentialSource supplies the bearer credential attached to every outbound
// request. The credential is treated as an opaque string; obtaining and
// refreshing it is someone else's problem.
type CredentialSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// StaticCredential is a credential source that always returns the same token.
type StaticCredential string

// BearerToken returns the fixed token.
func (c StaticCredential) BearerToken(_ context.Context) (string, error) {
	return string(c), nil
}

// Page represents one page of a user's notification list as returned by the
// backend.
type Page struct {
	Content       []model.Notification `json:"content"`
	TotalElements int                  `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
}

// BulkResult represents the backend's acknowledgment of a bulk mutation.
type BulkResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client is the HTTP client for the notification API.
type Client struct {
	baseURL     string
	credentials CredentialSource
	httpClient  *http.Client
}

// NewClient creates a new notification API client for the service rooted at
// baseURL.
func NewClient(baseURL string, credentials CredentialSource) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// GetNotifications fetches one page of the user's notifications.
func (c *Client) GetNotifications(ctx context.Context, userID string, page, size int) (*Page, error) {
	path := fmt.Sprintf("/notifications/user/%s", url.PathEscape(userID))
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("size", fmt.Sprintf("%d", size))

	var result Page
	err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStats fetches the aggregate notification counts for the user.
func (c *Client) GetStats(ctx context.Context, userID string) (*model.Stats, error) {
	path := fmt.Sprintf("/notifications/user/%s/stats", url.PathEscape(userID))

	var result model.Stats
	err := c.do(ctx, http.MethodGet, path, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkRead asks the backend to mark a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPut, path, nil)
}

// MarkAllRead asks the backend to mark all of the user's notifications as
// read. The backend's acknowledgment is returned verbatim so the caller can
// distinguish an explicit success from a partial failure.
func (c *Client) MarkAllRead(ctx context.Context, userID string) (*BulkResult, error) {
	path := fmt.Sprintf("/notifications/user/%s/read-all", url.PathEscape(userID))

	var result BulkResult
	err := c.do(ctx, http.MethodPut, path, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete asks the backend to delete a single notification.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do executes a single request against the notification API, attaching the
// bearer credential and decoding the JSON response body into result when a
// destination is provided.
func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	wrapMsg := fmt.Sprintf("unable to call %s %s", method, path)

	// Build the request.
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	req.Header.Set("Accept", "application/json")

	// Attach the bearer credential.
	token, err := c.credentials.BearerToken(ctx)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	// Execute the request. Failures at this level are connectivity problems,
	// which a retry may fix.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewRecoverableError("%s: %s", wrapMsg, err.Error())
	}
	defer resp.Body.Close()

	// Classify unsuccessful statuses.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return NewStatusError(method, path, resp.StatusCode)
	}

	// Decode the response body if the caller wants one.
	if result != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return NewRecoverableError("%s: %s", wrapMsg, err.Error())
		}
		err = json.Unmarshal(body, result)
		if err != nil {
			return NewUnrecoverableError("%s: unable to decode the response body: %s", wrapMsg, err.Error())
		}
	}

	return nil
}
