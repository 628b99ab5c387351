package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/chat"
	"github.com/notepid/gloop/internal/client/ui"
	"github.com/notepid/gloop/internal/invite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	clearCache := flag.Bool("clear-cache", false, "remove cached local state and exit")
	inviteCode := flag.String("invite", "", "redeem an invite code or link and exit")
	flag.Parse()

	if err := run(*configPath, *clearCache, *inviteCode); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, clearCache bool, inviteCode string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.New(ctx, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	if inviteCode != "" {
		inviter, err := a.Invites.Redeem(ctx, invite.CodeFromURL(inviteCode))
		if err != nil {
			return err
		}
		fmt.Printf("You've given %s a %dx Gloop Boost! Welcome to the gloopers.\n",
			inviter.FullName(), a.Config.Boost.Multiplier)
		return nil
	}

	local, err := a.OpenLocal()
	if err != nil {
		return err
	}
	defer local.Close()

	if clearCache {
		removed, err := local.ClearCache(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d cached item(s).\n", len(removed))
		return nil
	}

	sess := a.NewSession(ctx, local)
	sess.Start()
	defer sess.Close()

	broker := chat.NewBroker(a.Log.Named("broker"))
	sub := broker.Subscribe("tui")
	defer broker.Unsubscribe("tui")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.NewChatFeed(broker).Run(gctx)
	})

	p := tea.NewProgram(ui.New(a, sess, local, sub), tea.WithAltScreen(), tea.WithContext(gctx))
	_, runErr := p.Run()
	stop()
	if err := g.Wait(); err != nil {
		a.Log.Warn("chat feed stopped", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}
