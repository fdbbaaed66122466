package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// flakyStore fails selected operations on demand.
type flakyStore struct {
	*repository.MemoryStore
	failCreate bool
	failUpdate bool
	failLoadOn string
}

var errBoom = errors.New("boom")

func (s *flakyStore) CreateQuery(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	if s.failCreate {
		return nil, errBoom
	}
	return s.MemoryStore.CreateQuery(ctx, q)
}

func (s *flakyStore) UpdateQuery(ctx context.Context, id string, fn repository.QueryMutator) (*domain.Query, error) {
	if s.failUpdate {
		return nil, errBoom
	}
	return s.MemoryStore.UpdateQuery(ctx, id, fn)
}

func (s *flakyStore) IncrementLoad(ctx context.Context, id string, delta int64) error {
	if s.failLoadOn == id {
		return errBoom
	}
	return s.MemoryStore.IncrementLoad(ctx, id, delta)
}

type fixture struct {
	svc   *LifecycleService
	store *flakyStore
	pub   *recordingPublisher
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	pub := &recordingPublisher{}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewLifecycleService(LifecycleDependencies{
		Store:     store,
		Publisher: pub,
		Clock:     clock.Now,
	})
	return &fixture{svc: svc, store: store, pub: pub, clock: clock}
}

func (f *fixture) create(t *testing.T) *domain.Query {
	t.Helper()
	q, err := f.svc.CreateQuery(context.Background(), domain.IncomingMessage{
		Subject:       "How do I reset my password?",
		Body:          "I can't find the option",
		Channel:       domain.ChannelEmail,
		SenderName:    "Ada",
		SenderContact: "ada@example.com",
		Tags:          []string{"email", "email", "support"},
	})
	require.NoError(t, err)
	f.pub.reset()
	return q
}

func (f *fixture) load(t *testing.T, id string) int64 {
	t.Helper()
	n, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	return n
}

func TestCreateQuery(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.CreateQuery(context.Background(), domain.IncomingMessage{
		Subject:       "URGENT: System Down",
		Body:          "Our entire system is not working! This is critical and needs immediate attention!",
		Channel:       domain.ChannelChat,
		SenderName:    "Grace",
		SenderContact: "grace@example.com",
		Tags:          []string{"chat", "chat"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, domain.QueryStatusNew, q.Status)
	assert.Equal(t, domain.CategoryUrgent, q.Category)
	assert.Equal(t, 5, q.Priority)
	assert.Equal(t, []string{"chat"}, q.Tags)
	assert.Nil(t, q.AssigneeID)
	assert.Equal(t, f.clock.Now(), q.CreatedAt)

	require.Equal(t, []events.EventType{events.EventNewQuery}, f.pub.types())
	assert.Equal(t, q.ID, f.pub.events[0].Query.ID)
}

func TestCreateQuery_ValidationFailsBeforeStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateQuery(context.Background(), domain.IncomingMessage{
		Subject: "   ",
		Body:    "body",
		Channel: "fax",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "subject")
	assert.Contains(t, details, "channel")
	assert.Empty(t, f.pub.types())

	ov, err := f.store.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ov.Total)
}

func TestCreateQuery_StoreFailureEmitsNothing(t *testing.T) {
	f := newFixture(t)
	f.store.failCreate = true
	_, err := f.svc.CreateQuery(context.Background(), domain.IncomingMessage{
		Subject: "hi", Body: "there", Channel: domain.ChannelWeb, SenderName: "x", SenderContact: "y",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.pub.types())
}

func TestOperations_UnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ops := map[string]func() error{
		"assign":       func() error { _, err := f.svc.Assign(ctx, "missing", "a"); return err },
		"set status":   func() error { _, err := f.svc.SetStatus(ctx, "missing", domain.QueryStatusClosed); return err },
		"escalate":     func() error { _, err := f.svc.Escalate(ctx, "missing"); return err },
		"add note":     func() error { _, err := f.svc.AddNote(ctx, "missing", "hi", "a"); return err },
		"set priority": func() error { _, err := f.svc.SetPriority(ctx, "missing", 3); return err },
		"add tags":     func() error { _, err := f.svc.AddTags(ctx, "missing", "x"); return err },
		"get":          func() error { _, err := f.svc.Get(ctx, "missing"); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
		})
	}
	assert.Empty(t, f.pub.types())
	assert.Zero(t, f.load(t, "a"))
}

func TestAssign_ReassignMovesLoadOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	got, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Assignee())
	assert.Equal(t, domain.QueryStatusAssigned, got.Status)
	assert.Equal(t, int64(1), f.load(t, "alice"))

	_, err = f.svc.Assign(ctx, q.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.load(t, "alice"))
	assert.Equal(t, int64(1), f.load(t, "bob"))

	assert.Equal(t, []events.EventType{
		events.EventQueryAssigned, events.EventQueryUpdated,
		events.EventQueryAssigned, events.EventQueryUpdated,
	}, f.pub.types())
	assert.Equal(t, "alice", f.pub.events[0].RecipientID)
	assert.Equal(t, "bob", f.pub.events[2].RecipientID)
	assert.Equal(t, "bob", f.pub.events[3].Query.Assignee())
}

func TestAssign_ClearAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)
	f.pub.reset()

	got, err := f.svc.Assign(ctx, q.ID, "")
	require.NoError(t, err)
	assert.Nil(t, got.AssigneeID)
	assert.Equal(t, domain.QueryStatusAssigned, got.Status)
	assert.Zero(t, f.load(t, "alice"))
	assert.Equal(t, []events.EventType{events.EventQueryUpdated}, f.pub.types())
}

func TestAssign_LoadFailureLeavesQueryUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	_, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)
	f.pub.reset()

	f.store.failLoadOn = "bob"
	_, err = f.svc.Assign(ctx, q.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))

	stored, err := f.svc.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Assignee())
	assert.Equal(t, int64(1), f.load(t, "alice"))
	assert.Empty(t, f.pub.types())
}

func TestAssign_UpdateFailureRevertsLoads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	_, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)
	f.pub.reset()

	f.store.failUpdate = true
	_, err = f.svc.Assign(ctx, q.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	assert.Equal(t, int64(1), f.load(t, "alice"))
	assert.Zero(t, f.load(t, "bob"))
	assert.Empty(t, f.pub.types())
}

func TestAssign_RejectsUnknownAndInactiveRecipients(t *testing.T) {
	f := newFixture(t)
	f.svc.operators = repository.NewMemoryOperators(
		domain.Operator{ID: "alice", Active: true},
		domain.Operator{ID: "carol", Active: false},
	)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.Assign(ctx, q.ID, "nobody")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Assign(ctx, q.ID, "carol")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = f.svc.Assign(ctx, q.ID, "alice")
	assert.NoError(t, err)
}

func TestSetStatus_ResolveTwiceKeepsFirstStamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	_, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)

	f.clock.Advance(90*time.Minute + 59*time.Second)
	first, err := f.svc.SetStatus(ctx, q.ID, domain.QueryStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)
	require.NotNil(t, first.ResponseTimeMinutes)
	assert.Equal(t, 90, *first.ResponseTimeMinutes)
	assert.Zero(t, f.load(t, "alice"))

	f.clock.Advance(time.Hour)
	second, err := f.svc.SetStatus(ctx, q.ID, domain.QueryStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, *first.ResolvedAt, *second.ResolvedAt)
	assert.Equal(t, 90, *second.ResponseTimeMinutes)

	closed, err := f.svc.SetStatus(ctx, q.ID, domain.QueryStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusClosed, closed.Status)
	assert.Equal(t, *first.ResolvedAt, *closed.ResolvedAt)
	assert.Zero(t, f.load(t, "alice"))
}

func TestSetStatus_ReopenAndReassignKeepLoadBalanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.Assign(ctx, q.ID, "alice")
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, q.ID, domain.QueryStatusResolved)
	require.NoError(t, err)
	assert.Zero(t, f.load(t, "alice"))

	_, err = f.svc.SetStatus(ctx, q.ID, domain.QueryStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.load(t, "alice"))

	_, err = f.svc.SetStatus(ctx, q.ID, domain.QueryStatusClosed)
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, q.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, f.load(t, "alice"))
	assert.Equal(t, int64(1), f.load(t, "bob"))
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	_, err := f.svc.SetStatus(context.Background(), q.ID, "archived")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Empty(t, f.pub.types())
}

func TestSetStatus_ResolvedAtNeverBeforeCreatedAt(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.clock.Advance(-time.Hour)

	got, err := f.svc.SetStatus(context.Background(), q.ID, domain.QueryStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, q.CreatedAt, *got.ResolvedAt)
	assert.Equal(t, 0, *got.ResponseTimeMinutes)
}

func TestEscalate_IsIdempotentOnPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	for i := 0; i < 3; i++ {
		got, err := f.svc.Escalate(ctx, q.ID)
		require.NoError(t, err)
		assert.True(t, got.IsEscalated)
		assert.Equal(t, 5, got.Priority)
	}
	assert.Equal(t, []events.EventType{
		events.EventQueryEscalated, events.EventQueryEscalated, events.EventQueryEscalated,
	}, f.pub.types())
	for _, e := range f.pub.events {
		assert.True(t, e.Urgent())
	}
}

func TestAddNote_AppendsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t)
	b := f.create(t)

	for i := 0; i < 5; i++ {
		_, err := f.svc.AddNote(ctx, a.ID, fmt.Sprintf("note %d", i), "alice")
		require.NoError(t, err)
	}
	_, err := f.svc.AddNote(ctx, b.ID, "other", "bob")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 5)
	for i, n := range got.Notes {
		assert.Equal(t, fmt.Sprintf("note %d", i), n.Text)
		assert.Equal(t, "alice", n.AuthorID)
	}

	other, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, other.Notes, 1)

	_, err = f.svc.AddNote(ctx, a.ID, "  ", "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSetPriorityAndTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	_, err := f.svc.SetPriority(ctx, q.ID, 0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	_, err = f.svc.SetPriority(ctx, q.ID, 6)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	got, err := f.svc.SetPriority(ctx, q.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Priority)

	got, err = f.svc.AddTags(ctx, q.ID, "support", "billing", " ")
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "support", "billing"}, got.Tags)

	assert.Equal(t, []events.EventType{events.EventQueryUpdated, events.EventQueryUpdated}, f.pub.types())
}

func TestMutationFailureEmitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)
	f.store.failUpdate = true

	_, err := f.svc.Escalate(ctx, q.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	_, err = f.svc.AddNote(ctx, q.ID, "hi", "alice")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	_, err = f.svc.SetStatus(ctx, q.ID, domain.QueryStatusResolved)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))

	assert.Empty(t, f.pub.types())
}

func TestConcurrentAssignsKeepLoadsConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var queries []*domain.Query
	for i := 0; i < 10; i++ {
		queries = append(queries, f.create(t))
	}
	recipients := []string{"alice", "bob", "carol"}

	var wg sync.WaitGroup
	for _, q := range queries {
		for _, r := range recipients {
			wg.Add(1)
			go func(id, rid string) {
				defer wg.Done()
				_, err := f.svc.Assign(ctx, id, rid)
				assert.NoError(t, err)
			}(q.ID, r)
		}
	}
	wg.Wait()

	want := map[string]int64{}
	for _, q := range queries {
		got, err := f.svc.Get(ctx, q.ID)
		require.NoError(t, err)
		want[got.Assignee()]++
	}
	for _, r := range recipients {
		assert.Equal(t, want[r], f.load(t, r), r)
	}
	assert.Zero(t, f.svc.locks.size())
}

func TestEventsFollowCommitOrderPerQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.create(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.AddNote(ctx, q.ID, fmt.Sprintf("n%d", i), "alice")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, f.pub.events, 20)
	for i, e := range f.pub.events {
		assert.Len(t, e.Query.Notes, i+1)
	}
}
