package chat

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often the feed refreshes chat history.
const DefaultPollInterval = 4 * time.Second

// Source provides chat history.
type Source interface {
	Latest(ctx context.Context, limit int) ([]Message, error)
}

// FeedConfig configures a Feed.
type FeedConfig struct {
	Source   Source
	Broker   *Broker
	Clock    quartz.Clock
	Interval time.Duration
	History  int
	Log      *zap.Logger
}

// Feed polls chat history and publishes changes through a Broker.
type Feed struct {
	cfg       FeedConfig
	last      []Message
	published bool
}

// NewFeed creates a chat feed.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistory
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Feed{cfg: cfg}
}

// Run polls until ctx is done. The first poll happens immediately.
func (f *Feed) Run(ctx context.Context) error {
	f.Refresh(ctx)
	w := f.cfg.Clock.TickerFunc(ctx, f.cfg.Interval, func() error {
		f.Refresh(ctx)
		return nil
	}, "chat", "feed")
	err := w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Refresh fetches history once and publishes it when it changed. Fetch
// failures skip the cycle.
func (f *Feed) Refresh(ctx context.Context) {
	msgs, err := f.cfg.Source.Latest(ctx, f.cfg.History)
	if err != nil {
		if ctx.Err() == nil {
			f.cfg.Log.Warn("failed to fetch chat messages", zap.Error(err))
		}
		return
	}
	if f.published && sameMessages(f.last, msgs) {
		return
	}
	f.last = msgs
	f.published = true
	f.cfg.Broker.Publish(msgs)
}

func sameMessages(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
