package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

type telegramConfig struct {
	BotToken string `json:"bot_token"`
	APIBase  string `json:"api_base"`
}

type telegramSender struct {
	token   string
	apiBase string
	client  *http.Client
}

func init() {
	Register("telegram", createTelegramSender)
}

func createTelegramSender(args Args) (Sender, error) {
	cfg := &telegramConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot_token is required")
	}
	apiBase := strings.TrimSuffix(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultTelegramAPIBase
	}
	return &telegramSender{
		token:   cfg.BotToken,
		apiBase: apiBase,
		client:  &http.Client{Timeout: args.Timeout},
	}, nil
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send posts text to the chat identified by address. Texts are HTML formatted.
func (s *telegramSender) Send(ctx context.Context, address, text string) error {
	payload, err := json.Marshal(telegramSendMessage{ChatID: address, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	endpoint := s.apiBase + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		// the URL carries the bot token; keep it out of the error
		return fmt.Errorf("telegram send message: request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("telegram send message: read response: %w", err)
	}
	var result telegramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("telegram send message: status %d: decode response: %w", resp.StatusCode, err)
	}
	if !result.OK {
		return fmt.Errorf("%w: telegram %d: %s", ErrRejected, result.ErrorCode, result.Description)
	}
	return nil
}
