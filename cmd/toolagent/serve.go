package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rahul/toolagent/internal/gateway"
)

type gatewayFactory func(token string, h gateway.Handler, limiter *gateway.ChatLimiter) (gateway.Messenger, error)

type gatewayEntry struct {
	name  string
	build gatewayFactory
}

func (a *app) gatewayEntries() []gatewayEntry {
	return []gatewayEntry{
		{"telegram", func(token string, h gateway.Handler, l *gateway.ChatLimiter) (gateway.Messenger, error) {
			return gateway.NewTelegramGateway(token, h, l, a.logger)
		}},
		{"discord", func(token string, h gateway.Handler, l *gateway.ChatLimiter) (gateway.Messenger, error) {
			return gateway.NewDiscordGateway(token, h, l, a.logger)
		}},
	}
}

// gateways builds every enabled gateway, each with its own per-chat limiter.
func (a *app) gateways() ([]gateway.Messenger, error) {
	var out []gateway.Messenger
	for _, f := range a.gatewayEntries() {
		gwCfg, ok := a.cfg.GetGatewayConfig(f.name)
		if !ok {
			continue
		}
		limiter := gateway.NewChatLimiter(gwCfg.RatePerMinute, 3)
		gw, err := f.build(gwCfg.Token, a.agent, limiter)
		if err != nil {
			return nil, err
		}
		out = append(out, gw)
	}
	return out, nil
}

func (a *app) serve(ctx context.Context, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateways, err := a.gateways()
	if err != nil {
		fmt.Fprintln(stderr, "serve:", err)
		return exitInternal
	}
	if len(gateways) == 0 {
		fmt.Fprintln(stderr, "serve: no gateways enabled; set gateways.<name>.enabled and a token")
		return exitInternal
	}

	errc := make(chan error, len(gateways))
	for _, gw := range gateways {
		go func() {
			a.logger.LogGateway(gw.Name(), "", "starting")
			if err := gw.Start(); err != nil {
				errc <- fmt.Errorf("%s: %w", gw.Name(), err)
			}
		}()
	}

	code := exitOK
	select {
	case <-ctx.Done():
		a.logger.Slog().Info("shutting down")
	case err := <-errc:
		a.logger.Slog().Error("gateway failed", "err", err)
		code = exitInternal
	}

	for _, gw := range gateways {
		if err := gw.Stop(); err != nil {
			a.logger.Slog().Warn("gateway stop", "gateway", gw.Name(), "err", err)
		}
	}
	return code
}
