package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-filegate/internal/application/verification"
	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockItemStore struct{ mock.Mock }

func (m *mockItemStore) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *mockItemStore) IncrementDownloads(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) CheckAccess(ctx context.Context, userID string) (*verification.AccessStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.AccessStatus), args.Error(1)
}

func (m *mockVerifier) IssueChallenge(ctx context.Context, userID, subjectID string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, userID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerificationRecord), args.Error(1)
}

func (m *mockVerifier) RequestShortLink(ctx context.Context, rec *domain.VerificationRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *mockVerifier) CompleteChallenge(ctx context.Context, token string) (*verification.CompletionResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.CompletionResult), args.Error(1)
}

func (m *mockVerifier) History(ctx context.Context, userID string, limit int32) ([]domain.VerificationRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VerificationRecord), args.Error(1)
}

func (m *mockVerifier) Stats(ctx context.Context) (*verification.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.Stats), args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

type mockDeferrer struct{ mock.Mock }

func (m *mockDeferrer) Schedule(ctx context.Context, userID, deliveryID, itemID string, delay time.Duration) (*domain.DeliveryJob, error) {
	args := m.Called(ctx, userID, deliveryID, itemID, delay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryJob), args.Error(1)
}

type coordinatorFixture struct {
	items    *mockItemStore
	verifier *mockVerifier
	signer   *mockSigner
	deferrer *mockDeferrer
	svc      Service
}

func newCoordinator(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		items:    new(mockItemStore),
		verifier: new(mockVerifier),
		signer:   new(mockSigner),
		deferrer: new(mockDeferrer),
	}
	f.svc = NewService(f.items, f.verifier, f.signer, f.deferrer, clock.Fixed(t0), Options{
		DeleteDelay:    10 * time.Minute,
		ArtifactURLTTL: 10 * time.Minute,
	})
	return f
}

func activeItem() *domain.Item {
	return &domain.Item{
		ItemID: "item-1",
		Title:  "Sample Artifact",
		Object: "artifacts/item-1.bin",
		Active: true,
	}
}

func TestRequestDelivery_VerifiedUser_GetsArtifactAndDeletionJob(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "item-1").Return(activeItem(), nil)
	f.verifier.On("CheckAccess", mock.Anything, "u1").
		Return(&verification.AccessStatus{Verified: true}, nil)
	f.signer.On("PresignedURL", mock.Anything, "artifacts/item-1.bin", 10*time.Minute).
		Return("https://bucket.s3.amazonaws.com/artifacts/item-1.bin?sig=abc", nil)

	fireAt := t0.Add(10 * time.Minute)
	f.deferrer.On("Schedule", mock.Anything, "u1", mock.AnythingOfType("string"), "item-1", 10*time.Minute).
		Return(&domain.DeliveryJob{JobID: "job-1", FireAt: fireAt, Status: domain.JobScheduled}, nil)
	f.items.On("IncrementDownloads", mock.Anything, "item-1").Return(nil)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, res.Outcome)
	assert.NotEmpty(t, res.DeliveryID)
	assert.Contains(t, res.ArtifactRef, "sig=abc")
	require.NotNil(t, res.DeleteAt)
	assert.Equal(t, fireAt, *res.DeleteAt)
	f.deferrer.AssertExpectations(t)
	f.verifier.AssertNotCalled(t, "IssueChallenge", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestDelivery_UnverifiedUser_GetsShortVerifyLink(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "item-1").Return(activeItem(), nil)
	f.verifier.On("CheckAccess", mock.Anything, "u1").
		Return(&verification.AccessStatus{Verified: false}, nil)

	expires := t0.Add(30 * time.Minute)
	rec := &domain.VerificationRecord{
		Token:       "tok-1",
		UserID:      "u1",
		SubjectID:   "item-1",
		CallbackURL: "https://gate.example.com/v1/verify/tok-1",
		ExpiresAt:   expires,
	}
	f.verifier.On("IssueChallenge", mock.Anything, "u1", "item-1").Return(rec, nil)
	f.verifier.On("RequestShortLink", mock.Anything, rec).Return("https://sho.rt/x9", nil)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	require.NoError(t, err)
	assert.Equal(t, OutcomePendingVerification, res.Outcome)
	assert.Equal(t, "https://sho.rt/x9", res.VerifyURL)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, expires, *res.ExpiresAt)
	f.signer.AssertNotCalled(t, "PresignedURL", mock.Anything, mock.Anything, mock.Anything)
	f.deferrer.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestDelivery_ShortenerDown_FallsBackToCallbackURL(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "item-1").Return(activeItem(), nil)
	f.verifier.On("CheckAccess", mock.Anything, "u1").
		Return(&verification.AccessStatus{Verified: false}, nil)

	rec := &domain.VerificationRecord{
		Token:       "tok-1",
		UserID:      "u1",
		SubjectID:   "item-1",
		CallbackURL: "https://gate.example.com/v1/verify/tok-1",
		ExpiresAt:   t0.Add(30 * time.Minute),
	}
	f.verifier.On("IssueChallenge", mock.Anything, "u1", "item-1").Return(rec, nil)
	f.verifier.On("RequestShortLink", mock.Anything, rec).
		Return("", domain.ErrShortenerUnavailable)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	require.NoError(t, err)
	assert.Equal(t, OutcomePendingVerification, res.Outcome)
	assert.Equal(t, rec.CallbackURL, res.VerifyURL)
}

func TestRequestDelivery_UnknownItem_ReturnsNotFound(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "nope")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.verifier.AssertNotCalled(t, "CheckAccess", mock.Anything, mock.Anything)
}

func TestRequestDelivery_InactiveItem_TreatedAsNotFound(t *testing.T) {
	f := newCoordinator(t)
	item := activeItem()
	item.Active = false
	f.items.On("Get", mock.Anything, "item-1").Return(item, nil)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestDelivery_ScheduleFails_NoGrant(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "item-1").Return(activeItem(), nil)
	f.verifier.On("CheckAccess", mock.Anything, "u1").
		Return(&verification.AccessStatus{Verified: true}, nil)
	f.signer.On("PresignedURL", mock.Anything, "artifacts/item-1.bin", 10*time.Minute).
		Return("https://bucket.s3.amazonaws.com/x", nil)
	f.deferrer.On("Schedule", mock.Anything, "u1", mock.AnythingOfType("string"), "item-1", 10*time.Minute).
		Return(nil, domain.ErrStoreUnavailable)

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	f.items.AssertNotCalled(t, "IncrementDownloads", mock.Anything, mock.Anything)
}

func TestRequestDelivery_DownloadCountFailure_DoesNotBlockGrant(t *testing.T) {
	f := newCoordinator(t)
	f.items.On("Get", mock.Anything, "item-1").Return(activeItem(), nil)
	f.verifier.On("CheckAccess", mock.Anything, "u1").
		Return(&verification.AccessStatus{Verified: true}, nil)
	f.signer.On("PresignedURL", mock.Anything, "artifacts/item-1.bin", 10*time.Minute).
		Return("https://bucket.s3.amazonaws.com/x", nil)
	f.deferrer.On("Schedule", mock.Anything, "u1", mock.AnythingOfType("string"), "item-1", 10*time.Minute).
		Return(&domain.DeliveryJob{JobID: "job-1", FireAt: t0.Add(10 * time.Minute)}, nil)
	f.items.On("IncrementDownloads", mock.Anything, "item-1").Return(errors.New("throttled"))

	res, err := f.svc.RequestDelivery(context.Background(), "u1", "item-1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, res.Outcome)
}
