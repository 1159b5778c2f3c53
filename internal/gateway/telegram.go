package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/toolagent/internal/observability"
)

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Handler Handler
	Limiter *ChatLimiter
	Logger  *observability.Logger
}

var _ Messenger = (*TelegramGateway)(nil)

func NewTelegramGateway(token string, h Handler, limiter *ChatLimiter, logger *observability.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logger.LogGateway("telegram", "", "authorized on account "+bot.Self.UserName)

	return &TelegramGateway{
		Bot:     bot,
		Handler: h,
		Limiter: limiter,
		Logger:  logger,
	}, nil
}

func (tg *TelegramGateway) Name() string { return "telegram" }

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
		if from := update.Message.From; from != nil {
			tg.Logger.LogGateway("telegram", chatID, "message from "+from.UserName)
		}

		answer, ok := reply(context.Background(), tg.Handler, tg.Limiter, chatID, update.Message.Text)
		if !ok {
			continue
		}

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, answer)
		msg.ReplyToMessageID = update.Message.MessageID
		if _, err := tg.Bot.Send(msg); err != nil {
			tg.Logger.Slog().Error("telegram send", "chat_id", chatID, "err", err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
