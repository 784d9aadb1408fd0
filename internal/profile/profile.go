package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client pushes cropped avatars to a user profile service
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// UpdateRequest is the profile update payload. Only the avatar field is sent;
// the service leaves omitted fields unchanged, and an empty string removes
// the stored image.
type UpdateRequest struct {
	ProfileImage *string `json:"profile_image,omitempty"`
}

// NewClient creates a profile service client. The endpoint is the users
// resource, e.g. http://localhost:8000/api/v1/users
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAvatar uploads encoded avatar bytes as the user's profile image
func (c *Client) SetAvatar(ctx context.Context, userID int, avatar []byte) error {
	b64 := base64.StdEncoding.EncodeToString(avatar)
	return c.update(ctx, userID, &b64)
}

// ClearAvatar removes the user's profile image
func (c *Client) ClearAvatar(ctx context.Context, userID int) error {
	empty := ""
	return c.update(ctx, userID, &empty)
}

func (c *Client) update(ctx context.Context, userID int, image *string) error {
	payload, err := json.Marshal(UpdateRequest{ProfileImage: image})
	if err != nil {
		return fmt.Errorf("failed to marshal profile update: %w", err)
	}

	url := fmt.Sprintf("%s/%d", c.endpoint, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile update request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("profile service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
