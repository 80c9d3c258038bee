package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
)

// AccessStore persists per-user verification windows.
type AccessStore interface {
	Get(ctx context.Context, userID string) (*domain.UserAccess, error)
	MarkVerified(ctx context.Context, userID string, at time.Time) error
}

// RecordStore persists issued challenge records.
type RecordStore interface {
	Put(ctx context.Context, v *domain.VerificationRecord) error
	GetByToken(ctx context.Context, token string) (*domain.VerificationRecord, error)
	ExpirePending(ctx context.Context, userID string) (int, error)
	MarkExpired(ctx context.Context, token string) error
	Complete(ctx context.Context, token string, at time.Time) error
	SetShortURL(ctx context.Context, token, shortURL string) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]domain.VerificationRecord, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// TokenSource produces globally unique challenge tokens.
type TokenSource interface {
	New(userID, subjectID string, now time.Time) (string, error)
}

// Shortener converts the callback URL into a short trackable link.
type Shortener interface {
	Shorten(ctx context.Context, originalURL string) (string, error)
}

// AccessStatus is the result of a CheckAccess read.
type AccessStatus struct {
	Verified          bool       `json:"verified"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	HoursRemaining    int        `json:"hours_remaining"`
	VerificationCount int        `json:"verification_count"`
}

// CompletionResult reports a successful challenge completion.
type CompletionResult struct {
	UserID      string     `json:"user_id"`
	SubjectID   string     `json:"subject_id"`
	CompletedAt time.Time  `json:"completed_at"`
	ValidUntil  time.Time  `json:"valid_until"`
}

// Stats aggregates challenge records across all users.
type Stats struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Pending     int     `json:"pending"`
	Expired     int     `json:"expired"`
	SuccessRate float64 `json:"success_rate"`
}

type Service interface {
	CheckAccess(ctx context.Context, userID string) (*AccessStatus, error)
	IssueChallenge(ctx context.Context, userID, subjectID string) (*domain.VerificationRecord, error)
	RequestShortLink(ctx context.Context, rec *domain.VerificationRecord) (string, error)
	CompleteChallenge(ctx context.Context, token string) (*CompletionResult, error)
	History(ctx context.Context, userID string, limit int32) ([]domain.VerificationRecord, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Options carries the engine's recognized configuration, passed explicitly —
// no ambient globals.
type Options struct {
	Window          time.Duration // rolling verified window (default 24h)
	IssuanceTTL     time.Duration // how long an unanswered challenge stays valid
	RecordRetention time.Duration // how long dead records are kept for history
	CallTimeout     time.Duration // bound on store and shortener calls
	CallbackBaseURL string
}

type service struct {
	access    AccessStore
	records   RecordStore
	tokens    TokenSource
	shortener Shortener
	clk       clock.Clock
	opts      Options

	// userLocks serializes issue/complete per user so two concurrent
	// IssueChallenge calls cannot both pass the invalidate step.
	userLocks sync.Map // userID -> *sync.Mutex
}

func NewService(access AccessStore, records RecordStore, tokens TokenSource, shortener Shortener, clk clock.Clock, opts Options) Service {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.IssuanceTTL <= 0 {
		opts.IssuanceTTL = 30 * time.Minute
	}
	if opts.RecordRetention <= 0 {
		opts.RecordRetention = 30 * 24 * time.Hour
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &service{
		access:    access,
		records:   records,
		tokens:    tokens,
		shortener: shortener,
		clk:       clk,
		opts:      opts,
	}
}

func (s *service) lockUser(userID string) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CheckAccess is a pure read against the user's verification window.
func (s *service) CheckAccess(ctx context.Context, userID string) (*AccessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	now := s.clk.Now()
	a, err := s.access.Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			// Unknown user: needs verification, full window ahead.
			return &AccessStatus{Verified: false, HoursRemaining: int(s.opts.Window.Hours())}, nil
		}
		return nil, fmt.Errorf("read user access: %w", domain.ErrStoreUnavailable)
	}
	if !a.IsVerified(now, s.opts.Window) {
		return &AccessStatus{
			Verified:          false,
			LastVerifiedAt:    a.LastVerifiedAt,
			HoursRemaining:    int(s.opts.Window.Hours()),
			VerificationCount: a.VerificationCount,
		}, nil
	}
	until := a.VerifiedUntil(s.opts.Window)
	return &AccessStatus{
		Verified:          true,
		LastVerifiedAt:    a.LastVerifiedAt,
		ValidUntil:        &until,
		HoursRemaining:    int(until.Sub(now).Hours()),
		VerificationCount: a.VerificationCount,
	}, nil
}

// IssueChallenge invalidates any pending record for the user, then creates
// a fresh one. Invalidate-then-create runs under the per-user lock so at
// most one pending record exists per user at any instant.
func (s *service) IssueChallenge(ctx context.Context, userID, subjectID string) (*domain.VerificationRecord, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	now := s.clk.Now()
	expired, err := s.records.ExpirePending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("expire pending challenges: %w", domain.ErrStoreUnavailable)
	}
	if expired > 0 {
		slog.Info("invalidated pending challenges", "user_id", userID, "count", expired)
	}

	tok, err := s.tokens.New(userID, subjectID, now)
	if err != nil {
		return nil, err
	}
	rec := &domain.VerificationRecord{
		Token:       tok,
		UserID:      userID,
		SubjectID:   subjectID,
		CallbackURL: fmt.Sprintf("%s/v1/verify/%s", s.opts.CallbackBaseURL, tok),
		Status:      domain.VerificationPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.IssuanceTTL),
		PurgeAt:     now.Add(s.opts.RecordRetention).Unix(),
	}
	if err := s.records.Put(ctx, rec); err != nil {
		// The token must not reach the user if it was never persisted.
		return nil, fmt.Errorf("persist challenge: %w", domain.ErrStoreUnavailable)
	}
	slog.Info("issued challenge", "user_id", userID, "subject_id", subjectID, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// RequestShortLink asks the shortener for a trackable link to the record's
// callback URL. On ErrShortenerUnavailable the caller presents the raw
// callback URL instead — degraded but correct.
func (s *service) RequestShortLink(ctx context.Context, rec *domain.VerificationRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	short, err := s.shortener.Shorten(ctx, rec.CallbackURL)
	if err != nil {
		return "", err
	}
	if err := s.records.SetShortURL(ctx, rec.Token, short); err != nil {
		slog.Warn("failed to record short url", "token", rec.Token, "err", err)
	}
	return short, nil
}

// CompleteChallenge transitions the record to completed and stamps the
// user's window. Idempotent: a duplicate callback gets ErrTokenAlreadyCompleted
// and the user state changes exactly once.
func (s *service) CompleteChallenge(ctx context.Context, token string) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	rec, err := s.records.GetByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("unknown verification token: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read challenge: %w", domain.ErrStoreUnavailable)
	}

	switch rec.Status {
	case domain.VerificationCompleted:
		return nil, fmt.Errorf("challenge already completed: %w", domain.ErrTokenAlreadyCompleted)
	case domain.VerificationExpired:
		return nil, fmt.Errorf("challenge expired: %w", domain.ErrTokenExpired)
	}

	now := s.clk.Now()
	if rec.Expired(now) {
		// Lazy expiry: first read past expires_at flips the record.
		if err := s.records.MarkExpired(ctx, token); err != nil {
			slog.Warn("failed to mark challenge expired", "token", token, "err", err)
		}
		return nil, fmt.Errorf("challenge expired: %w", domain.ErrTokenExpired)
	}

	if err := s.records.Complete(ctx, token, now); err != nil {
		if isConflict(err) {
			// Lost the race to a concurrent callback; report what happened.
			fresh, ferr := s.records.GetByToken(ctx, token)
			if ferr == nil && fresh.Status == domain.VerificationCompleted {
				return nil, fmt.Errorf("challenge already completed: %w", domain.ErrTokenAlreadyCompleted)
			}
			return nil, fmt.Errorf("challenge expired: %w", domain.ErrTokenExpired)
		}
		return nil, fmt.Errorf("complete challenge: %w", domain.ErrStoreUnavailable)
	}
	if err := s.access.MarkVerified(ctx, rec.UserID, now); err != nil {
		return nil, fmt.Errorf("stamp verification window: %w", domain.ErrStoreUnavailable)
	}

	slog.Info("user verified", "user_id", rec.UserID, "subject_id", rec.SubjectID)
	return &CompletionResult{
		UserID:      rec.UserID,
		SubjectID:   rec.SubjectID,
		CompletedAt: now,
		ValidUntil:  now.Add(s.opts.Window),
	}, nil
}

func (s *service) History(ctx context.Context, userID string, limit int32) ([]domain.VerificationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	recs, err := s.records.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", domain.ErrStoreUnavailable)
	}
	return recs, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	counts, err := s.records.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count challenges: %w", domain.ErrStoreUnavailable)
	}
	st := &Stats{
		Completed: counts[domain.VerificationCompleted],
		Pending:   counts[domain.VerificationPending],
		Expired:   counts[domain.VerificationExpired],
	}
	st.Total = st.Completed + st.Pending + st.Expired
	if st.Total > 0 {
		st.SuccessRate = float64(st.Completed) / float64(st.Total) * 100
	}
	return st, nil
}
