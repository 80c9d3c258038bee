package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-filegate/internal/domain"
	"github.com/go-filegate/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memJobStore is an in-memory JobStore with the same atomic transition
// semantics as the DynamoDB repo.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.DeliveryJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*domain.DeliveryJob)}
}

func (s *memJobStore) Put(_ context.Context, j *domain.DeliveryJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.JobID] = &cp
	return nil
}

func (s *memJobStore) ClaimFired(_ context.Context, jobID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobScheduled {
		return false, nil
	}
	j.Status = domain.JobFired
	j.FiredAt = &at
	return true, nil
}

func (s *memJobStore) Cancel(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != domain.JobScheduled {
		return false, nil
	}
	j.Status = domain.JobCancelled
	return true, nil
}

func (s *memJobStore) ListScheduled(_ context.Context) ([]domain.DeliveryJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeliveryJob
	for _, j := range s.jobs {
		if j.Status == domain.JobScheduled {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *memJobStore) status(jobID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		return j.Status
	}
	return ""
}

// recordingNotifier counts NotifyDelete invocations per delivery.
type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(map[string]int), fail: make(map[string]error)}
}

func (n *recordingNotifier) NotifyDelete(_ context.Context, _, deliveryID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[deliveryID]++
	return n.fail[deliveryID]
}

func (n *recordingNotifier) count(deliveryID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[deliveryID]
}

func waitFor(t *testing.T, cond func() bool, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", within)
}

func newTestScheduler(store JobStore, notifier DeleteNotifier) *Scheduler {
	return New(store, notifier, clock.System(), Options{Workers: 2, CallTimeout: time.Second})
}

func TestSchedule_FiresOnceAfterDelay(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	job, err := s.Schedule(context.Background(), "u1", "d1", "item-5", 30*time.Millisecond)
	require.NoError(t, err)

	waitFor(t, func() bool { return notifier.count("d1") == 1 }, time.Second)
	assert.Equal(t, domain.JobFired, store.status(job.JobID))

	// Give the loop a chance to misbehave; the job must not re-fire.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, notifier.count("d1"))
}

func TestSchedule_DoesNotFireEarly(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	_, err := s.Schedule(context.Background(), "u1", "d1", "item-5", 200*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, notifier.count("d1"))
}

func TestCancel_BeforeFire_PreventsNotify(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	job, err := s.Schedule(context.Background(), "u1", "d1", "item-5", 150*time.Millisecond)
	require.NoError(t, err)

	ok, err := s.Cancel(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 0, notifier.count("d1"))
	assert.Equal(t, domain.JobCancelled, store.status(job.JobID))
}

func TestCancel_AfterFire_IsNoOpReturningFalse(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	job, err := s.Schedule(context.Background(), "u1", "d1", "item-5", 10*time.Millisecond)
	require.NoError(t, err)
	waitFor(t, func() bool { return notifier.count("d1") == 1 }, time.Second)

	ok, err := s.Cancel(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStart_CatchUp_FiresOverdueJobs(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()

	// Persisted by a previous process; fire_at already passed.
	overdue := &domain.DeliveryJob{
		JobID:       "job-overdue",
		UserID:      "u1",
		DeliveryID:  "d-old",
		ItemID:      "item-5",
		Status:      domain.JobScheduled,
		ScheduledAt: time.Now().Add(-20 * time.Minute),
		FireAt:      time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, store.Put(context.Background(), overdue))

	future := &domain.DeliveryJob{
		JobID:       "job-future",
		UserID:      "u1",
		DeliveryID:  "d-new",
		ItemID:      "item-5",
		Status:      domain.JobScheduled,
		ScheduledAt: time.Now(),
		FireAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Put(context.Background(), future))

	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	waitFor(t, func() bool { return notifier.count("d-old") == 1 }, time.Second)
	assert.Equal(t, 0, notifier.count("d-new"))
	assert.Equal(t, domain.JobScheduled, store.status("job-future"))
}

func TestFire_NotifierFailure_IsIsolatedAndJobStaysFired(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	notifier.fail["d-bad"] = errors.New("transport error")

	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	bad, err := s.Schedule(context.Background(), "u1", "d-bad", "item-5", 10*time.Millisecond)
	require.NoError(t, err)
	good, err := s.Schedule(context.Background(), "u2", "d-good", "item-7", 20*time.Millisecond)
	require.NoError(t, err)

	waitFor(t, func() bool {
		return notifier.count("d-bad") == 1 && notifier.count("d-good") == 1
	}, time.Second)

	// Cleanup is best-effort notification, not a guaranteed delete.
	assert.Equal(t, domain.JobFired, store.status(bad.JobID))
	assert.Equal(t, domain.JobFired, store.status(good.JobID))
}

func TestStop_DrainsDueJobs(t *testing.T) {
	store := newMemJobStore()
	notifier := newRecordingNotifier()
	s := newTestScheduler(store, notifier)
	require.NoError(t, s.Start(context.Background()))

	_, err := s.Schedule(context.Background(), "u1", "d-due", "item-5", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	s.Stop()
	assert.Equal(t, 1, notifier.count("d-due"))
}
