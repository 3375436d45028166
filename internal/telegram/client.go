// Package telegram is the Bot API adapter: wire types, the API surface the
// bot consumes, and an HTTP client speaking the form-encoded endpoints.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// API is the platform surface consumed by the bot. Implementations own no
// retry semantics; callers treat failures as a generic platform error.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	ReplyMessage(ctx context.Context, chatID, replyTo int64, text string) error
	RestrictMember(ctx context.Context, chatID, userID int64, perms ChatPermissions, until time.Time) error
	BanMember(ctx context.Context, chatID, userID int64, until time.Time) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error)
	BotID() int64
}

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	token        string
	baseURL      string
	http         *http.Client
	logger       *zap.Logger
	botID        int64
	lastUpdateID int64
}

func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 65 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL points the client at a different API host, used by tests.
func (c *Client) WithBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s: telegram API error: %s", method, parsed.Description)
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// Identify fetches the bot's own user id, needed to ignore self-targeted
// moderation. Must be called once before Poll.
func (c *Client) Identify(ctx context.Context) error {
	var me User
	if err := c.call(ctx, "getMe", url.Values{}, &me); err != nil {
		return err
	}
	c.botID = me.ID
	return nil
}

func (c *Client) BotID() int64 {
	return c.botID
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("text", text)
	return c.call(ctx, "sendMessage", params, nil)
}

func (c *Client) ReplyMessage(ctx context.Context, chatID, replyTo int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("text", text)
	params.Set("reply_to_message_id", fmt.Sprintf("%d", replyTo))
	return c.call(ctx, "sendMessage", params, nil)
}

func (c *Client) RestrictMember(ctx context.Context, chatID, userID int64, perms ChatPermissions, until time.Time) error {
	encoded, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("user_id", fmt.Sprintf("%d", userID))
	params.Set("permissions", string(encoded))
	if !until.IsZero() {
		params.Set("until_date", fmt.Sprintf("%d", until.Unix()))
	}
	return c.call(ctx, "restrictChatMember", params, nil)
}

func (c *Client) BanMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("user_id", fmt.Sprintf("%d", userID))
	if !until.IsZero() {
		params.Set("until_date", fmt.Sprintf("%d", until.Unix()))
	}
	return c.call(ctx, "banChatMember", params, nil)
}

func (c *Client) UnbanMember(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("user_id", fmt.Sprintf("%d", userID))
	params.Set("only_if_banned", "true")
	return c.call(ctx, "unbanChatMember", params, nil)
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	params.Set("user_id", fmt.Sprintf("%d", userID))
	var member ChatMember
	if err := c.call(ctx, "getChatMember", params, &member); err != nil {
		return ChatMember{}, err
	}
	return member, nil
}

func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", fmt.Sprintf("%d", chatID))
	var members []ChatMember
	if err := c.call(ctx, "getChatAdministrators", params, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) getUpdates(ctx context.Context) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", fmt.Sprintf("%d", c.lastUpdateID+1))
	params.Set("timeout", "30")
	params.Set("allowed_updates", `["message"]`)

	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Poll runs the long-poll loop until the context is cancelled, delivering
// each update to the handler in its own goroutine. Updates for independent
// (chat, user) pairs may therefore be processed concurrently.
func (c *Client) Poll(ctx context.Context, handler func(context.Context, Update)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("getUpdates failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}

		for _, update := range updates {
			c.lastUpdateID = update.UpdateID
			go handler(ctx, update)
		}
	}
}
