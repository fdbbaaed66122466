package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/repository"
	"github.com/spec-kit/query-triage/internal/service"
)

func TestLifecycleDeliveryFollowsCommitOrder(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	operators := repository.NewMemoryOperators(
		domain.Operator{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: domain.OperatorRoleAgent, Active: true},
		domain.Operator{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: domain.OperatorRoleAgent, Active: true},
	)
	dispatcher := events.NewInMemoryDispatcher(logger)
	router := NewRouter(RouterOptions{SendBuffer: 1024, Logger: logger})
	defer router.Close()
	events.SubscribeAll(dispatcher, router.Publish)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:     store,
		Operators: operators,
		Publisher: dispatcher,
		Logger:    logger,
	})

	conn := newFakeConn()
	require.NoError(t, router.Register("alice", conn))

	created, err := lifecycle.CreateQuery(ctx, domain.IncomingMessage{
		Subject:       "Cannot log in",
		Body:          "password reset link is broken",
		Channel:       domain.ChannelEmail,
		SenderName:    "Jane",
		SenderContact: "jane@example.com",
	})
	require.NoError(t, err)
	id := created.ID

	const workers = 48
	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		assignsToAlice int
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			switch i % 6 {
			case 0:
				_, err = lifecycle.Assign(ctx, id, "alice")
				if err == nil {
					mu.Lock()
					assignsToAlice++
					mu.Unlock()
				}
			case 1:
				_, err = lifecycle.Assign(ctx, id, "bob")
			case 2:
				_, err = lifecycle.SetStatus(ctx, id, domain.QueryStatusInProgress)
			case 3:
				_, err = lifecycle.SetStatus(ctx, id, domain.QueryStatusResolved)
			case 4:
				_, err = lifecycle.Escalate(ctx, id)
			default:
				_, err = lifecycle.AddNote(ctx, id, fmt.Sprintf("note %d", i), "alice")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// one new-query, one event per operation, plus the targeted copy of every
	// assignment to alice
	want := 1 + workers + assignsToAlice
	waitFor(t, func() bool { return len(conn.events()) == want })
	time.Sleep(10 * time.Millisecond)
	delivered := conn.events()
	require.Len(t, delivered, want)
	assert.Equal(t, events.EventNewQuery, delivered[0].Type)

	for i := 1; i < len(delivered); i++ {
		prev, cur := delivered[i-1].Query, delivered[i].Query
		assert.False(t, cur.UpdatedAt.Before(prev.UpdatedAt),
			"event %d (%s) went back in time", i, delivered[i].Type)
		assert.GreaterOrEqual(t, len(cur.Notes), len(prev.Notes),
			"event %d (%s) lost notes", i, delivered[i].Type)
		if delivered[i].Type == events.EventQueryAssigned {
			assert.Equal(t, "alice", delivered[i].RecipientID)
		}
	}

	final, err := lifecycle.Get(ctx, id)
	require.NoError(t, err)
	last := delivered[len(delivered)-1].Query
	assert.Equal(t, final.UpdatedAt, last.UpdatedAt)
	assert.Equal(t, final.Status, last.Status)
	assert.Len(t, last.Notes, workers/6)

	for _, op := range []string{"alice", "bob"} {
		load, err := store.Load(ctx, op)
		require.NoError(t, err)
		held := int64(0)
		if final.Assignee() == op && !final.Status.Terminal() {
			held = 1
		}
		assert.Equal(t, held, load, op)
	}
}
