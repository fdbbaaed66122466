package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/query-triage/internal/domain"
)

const queryColumns = `id, subject, body, channel, customer_name, customer_contact, category, priority,
               status, assignee_id, is_escalated, resolved_at, response_time_minutes, notes, tags,
               created_at, updated_at`

type queryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryRepository instantiates the Postgres-backed repository.
func NewQueryRepository(pool *pgxpool.Pool) QueryRepository {
	return &queryRepository{pool: pool}
}

func (r *queryRepository) CreateQuery(ctx context.Context, query *domain.Query) (*domain.Query, error) {
	const stmt = `
        INSERT INTO queries (id, subject, body, channel, customer_name, customer_contact, category, priority,
            status, assignee_id, is_escalated, notes, tags, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
        RETURNING updated_at`
	cp := query.Clone()
	if cp.Notes == nil {
		cp.Notes = []domain.Note{}
	}
	if cp.Tags == nil {
		cp.Tags = []string{}
	}
	if err := r.pool.QueryRow(ctx, stmt,
		cp.ID,
		cp.Subject,
		cp.Body,
		cp.Channel,
		cp.CustomerName,
		cp.CustomerContact,
		cp.Category,
		cp.Priority,
		cp.Status,
		cp.AssigneeID,
		cp.IsEscalated,
		cp.Notes,
		cp.Tags,
		cp.CreatedAt,
	).Scan(&cp.UpdatedAt); err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *queryRepository) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	q, err := scanQuery(r.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// UpdateQuery locks the row for the duration of the mutator so concurrent
// writers on the same id serialize in the database as well.
func (r *queryRepository) UpdateQuery(ctx context.Context, id string, mutate QueryMutator) (*domain.Query, error) {
	var updated *domain.Query
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q, err := scanQuery(tx.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id=$1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := mutate(q); err != nil {
			return err
		}
		const stmt = `
            UPDATE queries SET category=$1, priority=$2, status=$3, assignee_id=$4, is_escalated=$5,
                resolved_at=$6, response_time_minutes=$7, notes=$8, tags=$9, updated_at=NOW()
            WHERE id=$10
            RETURNING updated_at`
		if q.Notes == nil {
			q.Notes = []domain.Note{}
		}
		if q.Tags == nil {
			q.Tags = []string{}
		}
		if err := tx.QueryRow(ctx, stmt,
			q.Category,
			q.Priority,
			q.Status,
			q.AssigneeID,
			q.IsEscalated,
			q.ResolvedAt,
			q.ResponseTimeMinutes,
			q.Notes,
			q.Tags,
			q.ID,
		).Scan(&q.UpdatedAt); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *queryRepository) ListQueries(ctx context.Context, filter QueryFilter) ([]domain.Query, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, toStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Categories) > 0 {
		args = append(args, toStrings(filter.Categories))
		clauses = append(clauses, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if len(filter.Channels) > 0 {
		args = append(args, toStrings(filter.Channels))
		clauses = append(clauses, fmt.Sprintf("channel = ANY($%d)", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.AssignedOrNil != nil {
		args = append(args, *filter.AssignedOrNil)
		clauses = append(clauses, fmt.Sprintf("(assignee_id=$%d OR assignee_id IS NULL)", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(subject) LIKE %[1]s OR LOWER(body) LIKE %[1]s OR LOWER(customer_name) LIKE %[1]s OR LOWER(customer_contact) LIKE %[1]s)", p))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM queries WHERE %s ORDER BY priority DESC, created_at DESC LIMIT %d OFFSET %d`,
		queryColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *q)
	}
	return result, rows.Err()
}

func (r *queryRepository) Overview(ctx context.Context) (*Overview, error) {
	ov := newOverview()

	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_escalated) FROM queries`,
	).Scan(&ov.Total, &ov.Escalated); err != nil {
		return nil, err
	}

	byStatus, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	for k, v := range byStatus {
		ov.ByStatus[domain.QueryStatus(k)] = v
	}
	byCategory, err := r.countBy(ctx, "category")
	if err != nil {
		return nil, err
	}
	for k, v := range byCategory {
		ov.ByCategory[domain.Category(k)] = v
	}
	byChannel, err := r.countBy(ctx, "channel")
	if err != nil {
		return nil, err
	}
	for k, v := range byChannel {
		ov.ByChannel[domain.Channel(k)] = v
	}
	byPriority, err := r.countBy(ctx, "priority")
	if err != nil {
		return nil, err
	}
	for k, v := range byPriority {
		p, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("priority bucket %q: %w", k, err)
		}
		ov.ByPriority[p] = v
	}

	var avg *float64
	var lo, hi *int
	if err := r.pool.QueryRow(ctx, `
        SELECT AVG(response_time_minutes)::float8, MIN(response_time_minutes), MAX(response_time_minutes)
        FROM queries WHERE response_time_minutes IS NOT NULL`,
	).Scan(&avg, &lo, &hi); err != nil {
		return nil, err
	}
	if avg != nil && lo != nil && hi != nil {
		ov.ResponseTime = &ResponseTimeStats{AvgMinutes: *avg, MinMinutes: *lo, MaxMinutes: *hi}
	}
	return ov, nil
}

func (r *queryRepository) TeamPerformance(ctx context.Context) ([]AssigneeStats, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT assignee_id,
               COUNT(*),
               COUNT(*) FILTER (WHERE status = 'resolved'),
               AVG(response_time_minutes)::float8
        FROM queries
        WHERE assignee_id IS NOT NULL
        GROUP BY assignee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AssigneeStats{}
	for rows.Next() {
		var st AssigneeStats
		if err := rows.Scan(&st.AssigneeID, &st.TotalAssigned, &st.Resolved, &st.AvgResponseMinutes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortAssigneeStats(out)
	return out, nil
}

// countBy groups on a fixed column name; never pass caller input here.
func (r *queryRepository) countBy(ctx context.Context, column string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %[1]s::text, COUNT(*) FROM queries GROUP BY %[1]s`, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}

func scanQuery(row pgx.Row) (*domain.Query, error) {
	var q domain.Query
	var resolvedAt *time.Time
	if err := row.Scan(
		&q.ID,
		&q.Subject,
		&q.Body,
		&q.Channel,
		&q.CustomerName,
		&q.CustomerContact,
		&q.Category,
		&q.Priority,
		&q.Status,
		&q.AssigneeID,
		&q.IsEscalated,
		&resolvedAt,
		&q.ResponseTimeMinutes,
		&q.Notes,
		&q.Tags,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	q.ResolvedAt = resolvedAt
	return &q, nil
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
