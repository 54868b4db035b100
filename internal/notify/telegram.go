package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disktools/diskwatch/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

// telegramNotifier posts messages through the Telegram Bot API.
type telegramNotifier struct {
	token    string
	chatID   int64
	threadID int64
	baseURL  string
	client   *http.Client
}

func newTelegram(cfg *config.Settings) (Notifier, error) {
	if cfg.TelegramBotToken == "" && cfg.TelegramChatID == 0 {
		return nil, nil
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("telegram: %w: both TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required", ErrMisconfigured)
	}
	return &telegramNotifier{
		token:    cfg.TelegramBotToken,
		chatID:   cfg.TelegramChatID,
		threadID: cfg.TelegramThreadID,
		baseURL:  telegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (t *telegramNotifier) Name() string { return "telegram" }

func (t *telegramNotifier) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", msg.Title, msg.Body),
		"parse_mode": "Markdown",
	}
	if t.threadID != 0 {
		payload["message_thread_id"] = t.threadID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
