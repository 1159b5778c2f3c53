package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/rahul/toolagent/internal/observability"
)

// discordMaxMessage is Discord's per-message character limit.
const discordMaxMessage = 2000

type DiscordGateway struct {
	Session *discordgo.Session
	Handler Handler
	Limiter *ChatLimiter
	Logger  *observability.Logger

	done chan struct{}
}

var _ Messenger = (*DiscordGateway)(nil)

func NewDiscordGateway(token string, h Handler, limiter *ChatLimiter, logger *observability.Logger) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	dg := &DiscordGateway{
		Session: session,
		Handler: h,
		Limiter: limiter,
		Logger:  logger,
		done:    make(chan struct{}),
	}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) Name() string { return "discord" }

// Start opens the websocket and blocks until Stop.
func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	dg.Logger.LogGateway("discord", "", "connected as "+dg.Session.State.User.Username)
	<-dg.done
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	dg.Logger.LogGateway("discord", m.ChannelID, "message from "+m.Author.Username)

	answer, ok := reply(context.Background(), dg.Handler, dg.Limiter, m.ChannelID, m.Content)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, truncate(answer, discordMaxMessage), m.Reference()); err != nil {
		dg.Logger.Slog().Error("discord send", "chat_id", m.ChannelID, "err", err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, truncate(text, discordMaxMessage))
	return err
}

func (dg *DiscordGateway) Stop() error {
	select {
	case <-dg.done:
	default:
		close(dg.done)
	}
	return dg.Session.Close()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
