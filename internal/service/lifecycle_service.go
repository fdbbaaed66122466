package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/observability"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// LifecycleService owns the query state machine. Every mutation on a given
// query id runs under that id's lock and emits its events only after the
// store confirmed the write.
type LifecycleService struct {
	store      repository.Store
	classifier *classifier.Classifier
	operators  repository.OperatorRepository
	publisher  events.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	locks      *keyedMutex
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store      repository.Store
	Classifier *classifier.Classifier
	// Operators is optional; when set, Assign rejects unknown or inactive
	// recipients.
	Operators repository.OperatorRepository
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	svc := &LifecycleService{
		store:      deps.Store,
		classifier: deps.Classifier,
		operators:  deps.Operators,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		locks:      newKeyedMutex(),
	}
	if svc.classifier == nil {
		svc.classifier = classifier.New(nil)
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateQuery classifies an inbound message and files it as a new query.
func (s *LifecycleService) CreateQuery(ctx context.Context, msg domain.IncomingMessage) (q *domain.Query, err error) {
	defer func() { s.observe("create", err) }()

	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Body = strings.TrimSpace(msg.Body)
	msg.SenderName = strings.TrimSpace(msg.SenderName)
	msg.SenderContact = strings.TrimSpace(msg.SenderContact)
	if err := validateStruct("invalid incoming message", msg); err != nil {
		return nil, err
	}

	result := s.classifier.Classify(msg.Subject, msg.Body)
	now := s.now().UTC()
	query := &domain.Query{
		ID:              uuid.NewString(),
		Subject:         msg.Subject,
		Body:            msg.Body,
		Channel:         msg.Channel,
		CustomerName:    msg.SenderName,
		CustomerContact: msg.SenderContact,
		Category:        result.Category,
		Priority:        result.Priority,
		Status:          domain.QueryStatusNew,
		Notes:           []domain.Note{},
		Tags:            []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	query.AddTags(msg.Tags...)

	created, err := s.store.CreateQuery(ctx, query)
	if err != nil {
		return nil, s.storeError("create query", query.ID, err)
	}
	s.logger.Debug("query created",
		zap.String("query_id", created.ID),
		zap.String("category", string(created.Category)),
		zap.Int("priority", created.Priority))
	s.emit(ctx, events.NewQuery(created))
	return created, nil
}

// Assign hands a query to recipientID, or clears the assignee when it is
// empty. Load counters follow the assignee: the previous one is released
// unless the query was already terminal, the new one is charged.
func (s *LifecycleService) Assign(ctx context.Context, queryID, recipientID string) (q *domain.Query, err error) {
	defer func() { s.observe("assign", err) }()

	recipientID = strings.TrimSpace(recipientID)
	if recipientID != "" {
		if err := s.checkRecipient(ctx, recipientID); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(queryID)
	defer unlock()

	current, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, s.storeError("get query", queryID, err)
	}
	previous := current.Assignee()
	releasePrevious := previous != "" && !current.Status.Terminal()

	var applied []loadDelta
	if releasePrevious {
		applied = append(applied, loadDelta{previous, -1})
	}
	if recipientID != "" {
		applied = append(applied, loadDelta{recipientID, 1})
	}
	if err := s.adjustLoads(ctx, applied); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateQuery(ctx, queryID, func(q *domain.Query) error {
		if q.Assignee() != previous || q.Status.Terminal() != current.Status.Terminal() {
			return apperrors.NewConflict("query changed concurrently", map[string]any{"query_id": queryID})
		}
		if recipientID == "" {
			q.AssigneeID = nil
			return nil
		}
		q.AssigneeID = &recipientID
		q.Status = domain.QueryStatusAssigned
		return nil
	})
	if err != nil {
		s.revertLoads(ctx, applied)
		return nil, s.storeError("update query", queryID, err)
	}

	s.logger.Debug("query assigned",
		zap.String("query_id", queryID),
		zap.String("previous", previous),
		zap.String("assignee", recipientID))
	if recipientID != "" {
		s.emit(ctx, events.QueryAssigned(updated, recipientID))
	}
	s.emit(ctx, events.QueryUpdated(updated))
	return updated, nil
}

// SetStatus moves a query to status. The first entry into a terminal status
// stamps resolvedAt and responseTimeMinutes. An assignee holds load only while
// the query is open, so leaving or re-entering a terminal status moves it.
func (s *LifecycleService) SetStatus(ctx context.Context, queryID string, status domain.QueryStatus) (q *domain.Query, err error) {
	defer func() { s.observe("set_status", err) }()

	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}

	unlock := s.locks.Lock(queryID)
	defer unlock()

	current, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, s.storeError("get query", queryID, err)
	}
	firstTerminal := status.Terminal() && current.ResolvedAt == nil
	assignee := current.Assignee()

	var applied []loadDelta
	if assignee != "" && current.Status.Terminal() != status.Terminal() {
		delta := int64(-1)
		if !status.Terminal() {
			// reopened
			delta = 1
		}
		applied = append(applied, loadDelta{assignee, delta})
	}
	if err := s.adjustLoads(ctx, applied); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateQuery(ctx, queryID, func(q *domain.Query) error {
		if q.Assignee() != assignee || q.Status.Terminal() != current.Status.Terminal() ||
			(q.ResolvedAt == nil) != (current.ResolvedAt == nil) {
			return apperrors.NewConflict("query changed concurrently", map[string]any{"query_id": queryID})
		}
		q.Status = status
		if firstTerminal {
			resolvedAt := now
			if resolvedAt.Before(q.CreatedAt) {
				resolvedAt = q.CreatedAt
			}
			minutes := int(resolvedAt.Sub(q.CreatedAt) / time.Minute)
			q.ResolvedAt = &resolvedAt
			q.ResponseTimeMinutes = &minutes
		}
		return nil
	})
	if err != nil {
		s.revertLoads(ctx, applied)
		return nil, s.storeError("update query", queryID, err)
	}

	s.logger.Debug("query status changed",
		zap.String("query_id", queryID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)))
	s.emit(ctx, events.QueryUpdated(updated))
	return updated, nil
}

// Escalate flags a query and pins it at maximum priority. The escalation
// event fires on every call.
func (s *LifecycleService) Escalate(ctx context.Context, queryID string) (*domain.Query, error) {
	return s.mutate(ctx, "escalate", queryID, events.QueryEscalated, func(q *domain.Query) error {
		q.IsEscalated = true
		q.Priority = domain.MaxPriority
		return nil
	})
}

// AddNote appends an operator note.
func (s *LifecycleService) AddNote(ctx context.Context, queryID, text, authorID string) (*domain.Query, error) {
	text = strings.TrimSpace(text)
	authorID = strings.TrimSpace(authorID)
	if text == "" || authorID == "" {
		err := apperrors.NewValidationError("note text and author are required", nil)
		s.observe("add_note", err)
		return nil, err
	}
	now := s.now().UTC()
	return s.mutate(ctx, "add_note", queryID, events.QueryUpdated, func(q *domain.Query) error {
		q.Notes = append(q.Notes, domain.Note{Text: text, AuthorID: authorID, AddedAt: now})
		return nil
	})
}

// SetPriority overrides the classifier's priority.
func (s *LifecycleService) SetPriority(ctx context.Context, queryID string, priority int) (*domain.Query, error) {
	if priority < domain.MinPriority || priority > domain.MaxPriority {
		err := apperrors.NewValidationError("priority must be between 1 and 5", map[string]any{"priority": priority})
		s.observe("set_priority", err)
		return nil, err
	}
	return s.mutate(ctx, "set_priority", queryID, events.QueryUpdated, func(q *domain.Query) error {
		q.Priority = priority
		return nil
	})
}

// AddTags merges tags into the query's tag set.
func (s *LifecycleService) AddTags(ctx context.Context, queryID string, tags ...string) (*domain.Query, error) {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		err := apperrors.NewValidationError("at least one tag is required", nil)
		s.observe("add_tags", err)
		return nil, err
	}
	return s.mutate(ctx, "add_tags", queryID, events.QueryUpdated, func(q *domain.Query) error {
		q.AddTags(cleaned...)
		return nil
	})
}

// Get returns a query snapshot.
func (s *LifecycleService) Get(ctx context.Context, queryID string) (*domain.Query, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, s.storeError("get query", queryID, err)
	}
	return q, nil
}

// List returns queries matching filter.
func (s *LifecycleService) List(ctx context.Context, filter repository.QueryFilter) ([]domain.Query, error) {
	queries, err := s.store.ListQueries(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreError("list queries", err)
	}
	return queries, nil
}

// Overview aggregates queue statistics.
func (s *LifecycleService) Overview(ctx context.Context) (*repository.Overview, error) {
	ov, err := s.store.Overview(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("overview", err)
	}
	return ov, nil
}

// mutate runs a load-neutral update under the query lock and emits one event.
func (s *LifecycleService) mutate(ctx context.Context, op, queryID string, event func(*domain.Query) events.Event, fn repository.QueryMutator) (q *domain.Query, err error) {
	defer func() { s.observe(op, err) }()

	unlock := s.locks.Lock(queryID)
	defer unlock()

	updated, err := s.store.UpdateQuery(ctx, queryID, fn)
	if err != nil {
		return nil, s.storeError("update query", queryID, err)
	}
	s.logger.Debug("query updated", zap.String("op", op), zap.String("query_id", queryID))
	s.emit(ctx, event(updated))
	return updated, nil
}

func (s *LifecycleService) checkRecipient(ctx context.Context, recipientID string) error {
	if s.operators == nil {
		return nil
	}
	op, err := s.operators.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("recipient", map[string]any{"recipient_id": recipientID})
		}
		return apperrors.NewStoreError("get operator", err)
	}
	if !op.Active {
		return apperrors.NewConflict("recipient is inactive", map[string]any{"recipient_id": recipientID})
	}
	return nil
}

type loadDelta struct {
	recipientID string
	delta       int64
}

// adjustLoads applies deltas in order and undoes the applied prefix when one
// fails.
func (s *LifecycleService) adjustLoads(ctx context.Context, deltas []loadDelta) error {
	for i, d := range deltas {
		if err := s.store.IncrementLoad(ctx, d.recipientID, d.delta); err != nil {
			s.revertLoads(ctx, deltas[:i])
			s.logger.Warn("load counter update failed",
				zap.String("recipient_id", d.recipientID),
				zap.Int64("delta", d.delta),
				zap.Error(err))
			return apperrors.NewStoreError("increment load", err)
		}
	}
	return nil
}

func (s *LifecycleService) revertLoads(ctx context.Context, applied []loadDelta) {
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		if err := s.store.IncrementLoad(context.WithoutCancel(ctx), d.recipientID, -d.delta); err != nil {
			s.logger.Error("load counter compensation failed",
				zap.String("recipient_id", d.recipientID),
				zap.Int64("delta", -d.delta),
				zap.Error(err))
		}
	}
}

func (s *LifecycleService) storeError(op, queryID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("query", map[string]any{"query_id": queryID})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	s.logger.Error("store operation failed", zap.String("op", op), zap.String("query_id", queryID), zap.Error(err))
	return apperrors.NewStoreError(op, err)
}

// emit hands an event to the publisher. Delivery problems never fail the
// operation that produced the event.
func (s *LifecycleService) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *LifecycleService) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(apperrors.ToDomainError(err).Code)
	}
	s.metrics.RecordLifecycle(op, outcome)
}
