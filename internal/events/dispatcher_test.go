package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-triage/internal/domain"
)

func TestDispatcher_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string
	d.Subscribe(EventQueryUpdated, func(context.Context, Event) error {
		got = append(got, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventQueryUpdated, func(context.Context, Event) error {
		got = append(got, "second")
		return nil
	})
	d.Subscribe(EventNewQuery, func(context.Context, Event) error {
		got = append(got, "wrong type")
		return nil
	})

	q := &domain.Query{ID: "q-1"}
	require.NoError(t, d.Publish(context.Background(), QueryUpdated(q)))
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	seen := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type]++
		return nil
	})
	q := &domain.Query{ID: "q-1"}
	for _, e := range []Event{NewQuery(q), QueryAssigned(q, "op-1"), QueryUpdated(q), QueryEscalated(q)} {
		_ = d.Publish(context.Background(), e)
	}
	assert.Len(t, seen, 4)
}

func TestEventSnapshotIsDetached(t *testing.T) {
	q := &domain.Query{ID: "q-1", Notes: []domain.Note{{Text: "a"}}}
	e := QueryUpdated(q)
	q.Notes[0].Text = "changed"

	assert.Equal(t, "a", e.Query.Notes[0].Text)
	assert.NotEmpty(t, e.ID)
	assert.True(t, e.Broadcast())
	assert.False(t, e.Urgent())

	assigned := QueryAssigned(q, "op-1")
	assert.False(t, assigned.Broadcast())
	assert.Equal(t, "op-1", assigned.RecipientID)
	assert.True(t, QueryEscalated(q).Urgent())
}
