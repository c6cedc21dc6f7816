package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Voltaris/internal/config"
	"Voltaris/internal/repo"

	"github.com/sirupsen/logrus"
)

const DefaultTelegramURL = "https://api.telegram.org"

// Callback actions carried in inline keyboard data as "<action>:<lead id>".
const (
	ActionContacted = "contacted"
	ActionSpam      = "spam"
)

type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Telegram talks to the Bot API. It notifies the admin chat about leads and
// serves cmd/tgbot with updates and callback answers.
type Telegram struct {
	Token   string
	ChatID  int64
	BaseURL string
	Client  *http.Client
	Log     *logrus.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *logrus.Logger) *Telegram {
	return &Telegram{
		Token:   cfg.Token,
		ChatID:  cfg.AdminChatID,
		BaseURL: DefaultTelegramURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Log:     logger,
	}
}

func (t *Telegram) Enabled() bool {
	return t != nil && t.Token != "" && t.ChatID != 0
}

func (t *Telegram) endpoint(method string) string {
	base := t.BaseURL
	if base == "" {
		base = DefaultTelegramURL
	}
	return fmt.Sprintf("%s/bot%s/%s", base, t.Token, method)
}

func (t *Telegram) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

func (t *Telegram) do(req *http.Request, method string, out any) error {
	res, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer res.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !body.OK {
		return fmt.Errorf("telegram %s: %s (http %d)", method, body.Description, res.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (t *Telegram) post(ctx context.Context, method string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, method, out)
}

// NotifyLead posts the lead summary to the admin chat with status buttons.
func (t *Telegram) NotifyLead(ctx context.Context, lead repo.Lead) error {
	if !t.Enabled() {
		return nil
	}
	id := strconv.FormatInt(lead.ID, 10)
	payload := map[string]any{
		"chat_id": t.ChatID,
		"text":    FormatLead(lead),
		"reply_markup": map[string]any{
			"inline_keyboard": [][]inlineButton{{
				{Text: "Contacted", CallbackData: ActionContacted + ":" + id},
				{Text: "Spam", CallbackData: ActionSpam + ":" + id},
			}},
		},
	}
	if err := t.post(ctx, "sendMessage", payload, nil); err != nil {
		return err
	}
	if t.Log != nil {
		t.Log.WithField("lead_id", lead.ID).Debug("telegram notification sent")
	}
	return nil
}

// GetUpdates long-polls for updates starting at offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	q.Set("allowed_updates", `["callback_query"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := t.do(req, "getUpdates", &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (t *Telegram) AnswerCallback(ctx context.Context, id, text string) error {
	return t.post(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": id,
		"text":              text,
	}, nil)
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	return t.post(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}
