// Package app wires configuration, logging and the record store into the
// services both gloop front-ends share.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/chat"
	"github.com/notepid/gloop/internal/config"
	"github.com/notepid/gloop/internal/db"
	"github.com/notepid/gloop/internal/invite"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/logging"
	"github.com/notepid/gloop/internal/moderation"
	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/reconcile"
	"github.com/notepid/gloop/internal/session"
	"github.com/notepid/gloop/internal/user"
)

type App struct {
	ConfigPath string
	Config     *config.Config
	Log        *zap.Logger
	DB         *db.DB
	Rule       period.Rule
	Clock      quartz.Clock

	Users    *user.Repo
	Accounts *user.Service
	Chat     *chat.Repo
	Posts    *chat.Service
	Invites  *invite.Repo
}

// New loads the configuration at configPath and opens the record store.
// The returned cleanup closes everything New opened.
func New(ctx context.Context, configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	rule, err := period.NewRule(cfg.Period.Timezone, cfg.Period.Cutover)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Store.Driver == db.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0755); err != nil {
			return nil, nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	database, err := db.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("record store opened", zap.String("driver", database.Driver))

	var modRule *moderation.Rule
	if cfg.Chat.ModerationScript != "" {
		modRule, err = moderation.LoadRule(cfg.Chat.ModerationScript)
		if err != nil {
			_ = database.Close()
			return nil, nil, err
		}
	}

	clock := quartz.NewReal()
	now := func() time.Time { return clock.Now() }
	users := user.NewRepo(database)
	chats := chat.NewRepo(database)

	a := &App{
		ConfigPath: configPath,
		Config:     cfg,
		Log:        log,
		DB:         database,
		Rule:       rule,
		Clock:      clock,
		Users:      users,
		Accounts:   user.NewService(users, now),
		Chat:       chats,
		Posts:      chat.NewService(chats, moderation.NewFilter(cfg.Chat.BannedWords, modRule), now),
		Invites:    invite.NewRepo(database, users),
	}

	cleanup := func() {
		if modRule != nil {
			modRule.Close()
		}
		_ = database.Close()
		_ = log.Sync()
	}

	return a, cleanup, nil
}

// OpenLocal opens the client-side key-value store.
func (a *App) OpenLocal() (*localstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.Config.Local.Path), 0755); err != nil {
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	return localstore.Open(a.Config.Local.Path)
}

// NewSession builds a client session from the configuration. The caller
// starts and closes it.
func (a *App) NewSession(ctx context.Context, local *localstore.Store) *session.Session {
	return session.New(ctx, session.Config{
		Store:  a.Users,
		Local:  local,
		Policy: reconcile.Policy{Rule: a.Rule, Slack: a.Config.Reconcile.Slack},
		Boost: boost.Config{
			Duration:   a.Config.Boost.Duration,
			Multiplier: a.Config.Boost.Multiplier,
			DailyCap:   a.Config.Boost.DailyCap,
		},
		Clock:        a.Clock,
		PollInterval: a.Config.Poll.Users,
		Log:          a.Log.Named("session"),
	})
}

// NewChatFeed builds a chat poller publishing to broker.
func (a *App) NewChatFeed(broker *chat.Broker) *chat.Feed {
	return chat.NewFeed(chat.FeedConfig{
		Source:   a.Chat,
		Broker:   broker,
		Clock:    a.Clock,
		Interval: a.Config.Poll.Chat,
		History:  a.Config.Chat.History,
		Log:      a.Log.Named("chat"),
	})
}

// Now returns the current time from the app clock.
func (a *App) Now() time.Time {
	return a.Clock.Now()
}
