// Package telegram is a small Bot API client covering exactly the calls the
// service needs: long polling, messages with inline keyboards, documents,
// and callback acknowledgements.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"finbot/bot"
	"finbot/dialog"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Bot API. It implements bot.Transport and bot.Poller.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// New builds a client for the given bot token.
func New(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		// Long polls block up to 60s server-side; leave headroom.
		http: &http.Client{Timeout: 70 * time.Second},
	}
}

// WithBaseURL points the client at a different API host. Used in tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type apiUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// Poll long-polls for updates starting at offset.
func (c *Client) Poll(ctx context.Context, offset int64, timeout time.Duration) ([]bot.Update, error) {
	params := url.Values{
		"offset":  {strconv.FormatInt(offset, 10)},
		"timeout": {strconv.Itoa(int(timeout.Seconds()))},
	}
	raw, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []apiUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}

	out := make([]bot.Update, 0, len(updates))
	for _, u := range updates {
		converted := bot.Update{ID: u.UpdateID}
		switch {
		case u.Message != nil:
			converted.Message = &bot.Message{
				ChatID: u.Message.Chat.ID,
				UserID: u.Message.From.ID,
				Text:   u.Message.Text,
			}
		case u.CallbackQuery != nil:
			cb := &bot.Callback{
				ID:     u.CallbackQuery.ID,
				UserID: u.CallbackQuery.From.ID,
				Data:   u.CallbackQuery.Data,
			}
			if u.CallbackQuery.Message != nil {
				cb.ChatID = u.CallbackQuery.Message.Chat.ID
			}
			converted.Callback = cb
		default:
			continue
		}
		out = append(out, converted)
	}
	return out, nil
}

// SendMessage delivers text with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, buttons [][]dialog.Button) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	if len(buttons) > 0 {
		markup, err := json.Marshal(inlineKeyboard(buttons))
		if err != nil {
			return fmt.Errorf("encode keyboard: %w", err)
		}
		params.Set("reply_markup", string(markup))
	}
	_, err := c.call(ctx, "sendMessage", params)
	return err
}

// SendDocument uploads a file with a caption.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("create document part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	defer resp.Body.Close()
	_, err = decodeResponse(resp)
	return err
}

// AnswerCallback acknowledges an inline-button press so the client stops
// showing a spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := c.call(ctx, "answerCallbackQuery", url.Values{"callback_query_id": {callbackID}})
	return err
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method),
		bytes.NewBufferString(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		if resp.StatusCode == http.StatusConflict || decoded.ErrorCode == http.StatusConflict {
			return nil, fmt.Errorf("%w: %s", bot.ErrConflict, decoded.Description)
		}
		return nil, fmt.Errorf("api error %d: %s", decoded.ErrorCode, decoded.Description)
	}
	return decoded.Result, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

type keyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type keyboardMarkup struct {
	InlineKeyboard [][]keyboardButton `json:"inline_keyboard"`
}

func inlineKeyboard(rows [][]dialog.Button) keyboardMarkup {
	markup := keyboardMarkup{InlineKeyboard: make([][]keyboardButton, 0, len(rows))}
	for _, row := range rows {
		converted := make([]keyboardButton, 0, len(row))
		for _, b := range row {
			converted = append(converted, keyboardButton{Text: b.Label, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, converted)
	}
	return markup
}
