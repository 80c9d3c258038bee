package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/go-filegate/internal/pkg/id"
)

// ItemStore reads catalog entries and tracks their delivery counters.
type ItemStore interface {
	Get(ctx context.Context, itemID string) (*domain.Item, error)
	IncrementDownloads(ctx context.Context, itemID string) error
}

// ArtifactSigner mints a time-limited reference to a stored artifact.
type ArtifactSigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Deferrer schedules the post-delivery deletion action.
type Deferrer interface {
	Schedule(ctx context.Context, userID, deliveryID, itemID string, delay time.Duration) (*domain.DeliveryJob, error)
}

// Delivery outcomes.
const (
	OutcomeGranted             = "granted"
	OutcomePendingVerification = "pending_verification"
)

// Result is what a delivery request resolves to. Exactly one of the
// outcome-specific fields is populated.
type Result struct {
	Outcome     string     `json:"outcome"`
	DeliveryID  string     `json:"delivery_id,omitempty"`
	ItemID      string     `json:"item_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	ArtifactRef string     `json:"artifact_ref,omitempty"`
	DeleteAt    *time.Time `json:"delete_at,omitempty"`
	VerifyURL   string     `json:"verify_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type Service interface {
	RequestDelivery(ctx context.Context, userID, itemID string) (*Result, error)
}

// Options carries the coordinator's configuration.
type Options struct {
	DeleteDelay    time.Duration // how long a delivered artifact stays reachable
	ArtifactURLTTL time.Duration // lifetime of the presigned artifact reference
}

// service holds no per-request state: every request is resolved from the
// stores, so any instance can serve any user.
type service struct {
	items    ItemStore
	verifier verification.Service
	signer   ArtifactSigner
	deferrer Deferrer
	clk      clock.Clock
	opts     Options
}

func NewService(items ItemStore, verifier verification.Service, signer ArtifactSigner, deferrer Deferrer, clk clock.Clock, opts Options) Service {
	if opts.DeleteDelay <= 0 {
		opts.DeleteDelay = 10 * time.Minute
	}
	if opts.ArtifactURLTTL <= 0 {
		opts.ArtifactURLTTL = opts.DeleteDelay
	}
	return &service{
		items:    items,
		verifier: verifier,
		signer:   signer,
		deferrer: deferrer,
		clk:      clk,
		opts:     opts,
	}
}

// RequestDelivery gates the item behind the user's verification window.
// Verified users get the artifact plus a scheduled deletion; everyone
// else gets a fresh verification link.
func (s *service) RequestDelivery(ctx context.Context, userID, itemID string) (*Result, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("catalog item %s: %w", itemID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read catalog item: %w", domain.ErrStoreUnavailable)
	}
	if !item.Active {
		return nil, fmt.Errorf("catalog item %s: %w", itemID, domain.ErrNotFound)
	}

	status, err := s.verifier.CheckAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.Verified {
		return s.requireVerification(ctx, userID, itemID)
	}
	return s.grant(ctx, userID, item)
}

func (s *service) requireVerification(ctx context.Context, userID, itemID string) (*Result, error) {
	rec, err := s.verifier.IssueChallenge(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	verifyURL, err := s.verifier.RequestShortLink(ctx, rec)
	if err != nil {
		// Shortener outage never blocks verification; hand out the raw
		// callback URL instead.
		slog.Warn("shortener unavailable, falling back to callback url",
			"user_id", userID, "err", err)
		verifyURL = rec.CallbackURL
	}

	return &Result{
		Outcome:   OutcomePendingVerification,
		ItemID:    itemID,
		VerifyURL: verifyURL,
		ExpiresAt: &rec.ExpiresAt,
	}, nil
}

func (s *service) grant(ctx context.Context, userID string, item *domain.Item) (*Result, error) {
	ref, err := s.signer.PresignedURL(ctx, item.Object, s.opts.ArtifactURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign artifact reference: %w", err)
	}

	deliveryID := id.New()
	job, err := s.deferrer.Schedule(ctx, userID, deliveryID, item.ItemID, s.opts.DeleteDelay)
	if err != nil {
		// Without the deletion job the artifact would outlive its window.
		return nil, fmt.Errorf("schedule post-delivery deletion: %w", err)
	}

	if err := s.items.IncrementDownloads(ctx, item.ItemID); err != nil {
		slog.Warn("failed to bump download count", "item_id", item.ItemID, "err", err)
	}

	slog.Info("delivery granted", "user_id", userID, "item_id", item.ItemID,
		"delivery_id", deliveryID, "delete_at", job.FireAt)
	return &Result{
		Outcome:     OutcomeGranted,
		DeliveryID:  deliveryID,
		ItemID:      item.ItemID,
		Title:       item.Title,
		ArtifactRef: ref,
		DeleteAt:    &job.FireAt,
	}, nil
}
