package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/chanlink/internal/delivery"
	"github.com/xxxsen/chanlink/internal/pkg/errcode"
	"github.com/xxxsen/chanlink/internal/pkg/response"
	"github.com/xxxsen/chanlink/internal/service"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	telegramUsage        = "Request a link code from the service, then send <code>/link 123456</code> here to link this chat to your account."
)

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// TelegramHandler receives bot updates and turns "/link CODE" messages into
// link confirmations for the sending chat.
type TelegramHandler struct {
	channels *service.ChannelService
	sender   delivery.Sender
	secret   string
}

func NewTelegramHandler(channels *service.ChannelService, sender delivery.Sender, secret string) *TelegramHandler {
	return &TelegramHandler{channels: channels, sender: sender, secret: secret}
}

func (h *TelegramHandler) Webhook(c *gin.Context) {
	// an empty secret rejects every update
	got := c.GetHeader(telegramSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
		return
	}
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c)
		return
	}
	// telegram redelivers anything not answered with 2xx
	if update.Message == nil || update.Message.Chat.ID == 0 {
		response.Success(c, gin.H{})
		return
	}
	ctx := c.Request.Context()
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	command, arg := parseCommand(update.Message.Text)
	switch command {
	case "/start", "/help":
		h.reply(ctx, chatID, telegramUsage)
	case "/link":
		if arg == "" {
			h.reply(ctx, chatID, telegramUsage)
			break
		}
		// on success the service sends its own confirmation
		if _, err := h.channels.ConfirmLink(ctx, arg, chatID); err != nil {
			_, _, msg := classify(err)
			h.reply(ctx, chatID, fmt.Sprintf("Link failed: %s.", html.EscapeString(msg)))
		}
	}
	response.Success(c, gin.H{})
}

func (h *TelegramHandler) reply(ctx context.Context, chatID, text string) {
	if err := h.sender.Send(ctx, chatID, text); err != nil {
		logutil.GetLogger(ctx).Warn("telegram reply failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// parseCommand splits "/cmd@botname arg" into "/cmd" and "arg".
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", ""
	}
	command := strings.ToLower(fields[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	return command, arg
}
