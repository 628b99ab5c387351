package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/notepid/gloop/internal/moderation"
)

// ErrEmptyMessage is returned when a message is blank after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Service posts moderated messages to global chat.
type Service struct {
	repo   *Repo
	filter *moderation.Filter
	now    func() time.Time
}

// NewService creates a chat service. A nil filter uses the default banned
// words.
func NewService(repo *Repo, filter *moderation.Filter, now func() time.Time) *Service {
	if filter == nil {
		filter = moderation.NewFilter(nil, nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, filter: filter, now: now}
}

// Post validates and stores a message. The sender name falls back to
// AnonymousName when blank.
func (s *Service) Post(ctx context.Context, sender, body string) (*Message, error) {
	body = Clip(strings.TrimSpace(body), MaxLength)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	name := SenderName("", sender)
	if err := s.filter.Check(name, body); err != nil {
		return nil, err
	}
	return s.repo.Insert(ctx, name, body, s.now())
}

// SenderName picks the display name for a message: the signed-in user's full
// name, then the stored chat name, then AnonymousName.
func SenderName(signedIn, stored string) string {
	if n := strings.TrimSpace(signedIn); n != "" {
		return Clip(n, MaxNameLength)
	}
	if n := strings.TrimSpace(stored); n != "" {
		return Clip(n, MaxNameLength)
	}
	return AnonymousName
}

// Clip cuts s to at most n runes.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
