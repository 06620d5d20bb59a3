// Package directory talks to the chat-room REST collaborators: creating,
// listing, joining and closing rooms, and fetching room history. Every
// response arrives in the uniform envelope {code, message, result} where
// code 1000 denotes success.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/itzBaowy/ecms-livechat/pkg/config"
	"github.com/itzBaowy/ecms-livechat/pkg/state"
)

const codeSuccess = 1000

type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// RequestError carries a failure envelope back to the caller. These are
// surfaced to the user and never retried.
type RequestError struct {
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %s (code %d)", e.Message, e.Code)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.APIConfig, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   token,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(slog.String("component", "directory_client")),
	}
}

// Login exchanges credentials for an access token. The only unauthenticated
// call in the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// CreateRoom opens a new support request for the calling customer.
func (c *Client) CreateRoom(ctx context.Context) (state.Room, error) {
	var room state.Room
	err := c.do(ctx, http.MethodPost, "/chat/rooms", nil, &room)
	return room, err
}

// MyRooms returns the caller's rooms (customer view, or a staff member's
// claimed rooms).
func (c *Client) MyRooms(ctx context.Context) ([]state.Room, error) {
	var rooms []state.Room
	err := c.do(ctx, http.MethodGet, "/chat/rooms/my", nil, &rooms)
	return rooms, err
}

// PendingRooms returns unclaimed support requests (staff view).
func (c *Client) PendingRooms(ctx context.Context) ([]state.Room, error) {
	var rooms []state.Room
	err := c.do(ctx, http.MethodGet, "/chat/rooms/pending", nil, &rooms)
	return rooms, err
}

// JoinRoom claims a pending request for the calling staff member.
func (c *Client) JoinRoom(ctx context.Context, roomID int64) (state.Room, error) {
	var room state.Room
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/rooms/%d/join", roomID), nil, &room)
	return room, err
}

// CloseRoom ends the conversation. Either party may close.
func (c *Client) CloseRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/rooms/%d/close", roomID), nil, nil)
}

// History fetches the persisted transcript of a room.
func (c *Client) History(ctx context.Context, roomID int64) ([]state.ChatMessage, error) {
	var messages []state.ChatMessage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/rooms/%d/messages", roomID), nil, &messages)
	return messages, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	if env.Code != codeSuccess {
		c.logger.Warn("Request rejected by server",
			slog.String("path", path),
			slog.Int("code", env.Code),
			slog.String("message", env.Message),
		)
		return &RequestError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decoding result payload: %w", err)
		}
	}
	return nil
}
