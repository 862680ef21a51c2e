// Package telegram is the Telegram Bot API transport for reminder
// notifications and inbound chat commands.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/notexe/reminder-bot/internal/notify"
)

// DefaultBaseURL is prefixed to the bot token to form the API root.
const DefaultBaseURL = "https://api.telegram.org/bot"

// Client talks to the Bot API on behalf of a single chat.
type Client struct {
	apiRoot string
	chatID  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the chat identified by chatID.
// baseURL is the API address the token is appended to (DefaultBaseURL
// when empty).
func NewClient(baseURL, token, chatID string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiRoot: strings.TrimSuffix(baseURL, "/") + token + "/",
		chatID:  chatID,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "telegram"),
	}
}

// Update represents an update from Telegram
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a message in Telegram
type Message struct {
	MessageID int64    `json:"message_id"`
	Chat      *Chat    `json:"chat"`
	Date      int64    `json:"date"`
	Text      string   `json:"text,omitempty"`
	ReplyTo   *Message `json:"reply_to_message,omitempty"`
}

// Chat represents a Telegram chat
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Send sends text to the configured chat, as MarkdownV2 when markdown is
// set, and returns the new message's id.
func (c *Client) Send(ctx context.Context, text string, markdown bool) (int64, error) {
	payload := sendMessageRequest{
		ChatID: c.chatID,
		Text:   text,
	}
	if markdown {
		payload.ParseMode = "MarkdownV2"
	}

	var sent Message
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Debug("message sent", "message_id", sent.MessageID, "markdown", markdown)
	return sent.MessageID, nil
}

// Fetch returns text messages from the configured chat with update id at
// or after cursor. Updates from other chats and non-text updates are
// skipped but still advance the cursor.
func (c *Client) Fetch(ctx context.Context, cursor int64) (notify.Batch, error) {
	payload := getUpdatesRequest{
		Offset:         cursor,
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return notify.Batch{}, fmt.Errorf("failed to get updates: %w", err)
	}

	batch := notify.Batch{Next: cursor}
	for _, update := range updates {
		if update.UpdateID >= batch.Next {
			batch.Next = update.UpdateID + 1
		}

		msg := update.Message
		if msg == nil || msg.Text == "" || msg.Chat == nil {
			continue
		}
		if strconv.FormatInt(msg.Chat.ID, 10) != c.chatID {
			c.logger.Debug("ignoring message from other chat", "chat_id", msg.Chat.ID)
			continue
		}

		m := notify.Message{Text: msg.Text}
		if msg.ReplyTo != nil {
			m.ReplyTo = msg.ReplyTo.MessageID
		}
		batch.Messages = append(batch.Messages, m)
	}

	return batch, nil
}

// call makes a request to the Telegram Bot API and decodes the result
// into out. Server errors and rate limits are transient; other API
// rejections are permanent.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &notify.PermanentError{Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiRoot+method, bytes.NewReader(body))
	if err != nil {
		return &notify.PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", notify.ErrTransport, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", notify.ErrTransport, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(responseBody, &apiResp); err != nil {
		err = fmt.Errorf("%w: status %d: failed to parse response: %v", notify.ErrTransport, resp.StatusCode, err)
		if retryable(resp.StatusCode) {
			return err
		}
		return &notify.PermanentError{Err: err}
	}

	if !apiResp.OK || resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: API error (status %d): %s", notify.ErrTransport, resp.StatusCode, apiResp.Description)
		if retryable(resp.StatusCode) {
			return err
		}
		return &notify.PermanentError{Err: err}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(apiResp.Result, out); err != nil {
		return &notify.PermanentError{Err: fmt.Errorf("%w: failed to decode %s result: %v", notify.ErrTransport, method, err)}
	}
	return nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
