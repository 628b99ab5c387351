package user

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service implements signup and sign-in on top of the repo.
type Service struct {
	repo *Repo
	now  func() time.Time
}

// NewService creates a user service. now may be nil to use time.Now.
func NewService(repo *Repo, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// SignUp validates and creates a new account.
func (s *Service) SignUp(ctx context.Context, email, firstName, lastName string) (*Record, error) {
	if err := ValidateSignup(email, firstName, lastName); err != nil {
		return nil, err
	}
	rec, err := s.repo.Create(ctx, NormalizeEmail(email), strings.TrimSpace(firstName), strings.TrimSpace(lastName), s.now())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SignIn looks up an existing account by email.
func (s *Service) SignIn(ctx context.Context, email string) (*Record, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("sign in %s: %w", NormalizeEmail(email), err)
	}
	return rec, nil
}
