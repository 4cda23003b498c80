package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// GraphClient performs comment actions through the platform Graph API.
// Calls are not idempotent and not reversible; callers treat failures as
// best-effort and settle local state regardless.
type GraphClient struct {
	http    *retryablehttp.Client
	baseURL string
	logger  *zap.Logger
}

func NewGraphClient(baseURL string, logger *zap.Logger) *GraphClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &GraphClient{
		http:    rc,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *GraphClient) do(ctx context.Context, method, path string, form url.Values) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building graph request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var ge graphError
	if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
		return fmt.Errorf("graph api error %d (code %d): %s", resp.StatusCode, ge.Error.Code, ge.Error.Message)
	}
	return fmt.Errorf("graph api status %d", resp.StatusCode)
}

// HideComment hides a comment on the platform.
func (c *GraphClient) HideComment(ctx context.Context, platformCommentID, credential string) error {
	form := url.Values{}
	form.Set("is_hidden", "true")
	form.Set("access_token", credential)

	if err := c.do(ctx, http.MethodPost, "/"+platformCommentID, form); err != nil {
		return fmt.Errorf("hiding comment %s: %w", platformCommentID, err)
	}
	return nil
}

// DeleteComment removes a comment from the platform.
func (c *GraphClient) DeleteComment(ctx context.Context, platformCommentID, credential string) error {
	path := "/" + platformCommentID + "?access_token=" + url.QueryEscape(credential)
	if err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting comment %s: %w", platformCommentID, err)
	}
	return nil
}

// BlockCommenter blocks a commenter from the account.
func (c *GraphClient) BlockCommenter(ctx context.Context, commenterPlatformID, credential string) error {
	form := url.Values{}
	form.Set("user", commenterPlatformID)
	form.Set("access_token", credential)

	if err := c.do(ctx, http.MethodPost, "/me/blocked", form); err != nil {
		return fmt.Errorf("blocking commenter %s: %w", commenterPlatformID, err)
	}
	return nil
}
