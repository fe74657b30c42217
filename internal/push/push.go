// Package push delivers best-effort mobile push messages through an external
// provider. Every error here is advisory: callers log and move on.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTitle = "Storefront"

type Client struct {
	url    string
	client *http.Client
}

// NewClient builds a client with a bounded timeout so a slow provider can
// never stall request handling.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type message struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *Client) Send(ctx context.Context, deviceToken, body string) error {
	payload, err := json.Marshal(message{
		To:    deviceToken,
		Title: defaultTitle,
		Body:  body,
	})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push provider returned %d", resp.StatusCode)
	}
	return nil
}
