// internal/instagram/client.go
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/commentflow/internal/types"
)

const defaultBaseURL = "https://graph.instagram.com/v21.0"

// Client talks to the Instagram Graph API on behalf of the business account.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Config holds the Graph API connection settings.
type Config struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
}

// New creates a Graph API client. An empty BaseURL uses the production
// endpoint.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type replyResponse struct {
	ID string `json:"id"`
}

// PostReply publishes a reply under the given comment and returns the
// platform ID of the new reply.
func (c *Client) PostReply(ctx context.Context, commentID types.CommentID, text string) (types.CommentID, error) {
	form := url.Values{}
	form.Set("message", text)

	var out replyResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/replies", commentID), form, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &types.TransientError{
			Op:  "post reply",
			Err: fmt.Errorf("no reply ID in response for comment %s", commentID),
		}
	}
	return types.CommentID(out.ID), nil
}

// HideComment hides the comment from the public thread.
func (c *Client) HideComment(ctx context.Context, commentID types.CommentID) error {
	form := url.Values{}
	form.Set("hide", "true")
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s", commentID), form, nil)
}

type mediaResponse struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Owner     struct {
		ID string `json:"id"`
	} `json:"owner"`
}

// FetchMedia loads the media's metadata. New media default to processing
// enabled; the stored flag is authoritative afterwards.
func (c *Client) FetchMedia(ctx context.Context, id types.MediaID) (*types.Media, error) {
	form := url.Values{}
	form.Set("fields", "id,caption,media_type,media_url,owner")

	var out mediaResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s", id), form, &out); err != nil {
		return nil, err
	}
	return &types.Media{
		ID:                id,
		OwnerID:           out.Owner.ID,
		Caption:           out.Caption,
		MediaType:         out.MediaType,
		MediaURL:          out.MediaURL,
		ProcessingEnabled: true,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// do executes one Graph API call. GET sends params in the query string,
// POST in the form body. The access token rides along as a parameter,
// which is how the Graph API authenticates.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBufferString(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.TransientError{Op: "graph api " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.TransientError{Op: "graph api " + path, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 500))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &types.TransientError{Op: "graph api " + path, Err: err}
		}
		return &types.PermanentError{Op: "graph api " + path, Err: err}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &types.TransientError{Op: "graph api " + path, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
