package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

const (
	outcomeHistoryTable = "acl.outcome_history"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutcomeHistoryRepository implements port.OutcomeHistory backed by PostgreSQL.
type OutcomeHistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOutcomeHistoryRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewOutcomeHistoryRepository(exec pgExecutor) *OutcomeHistoryRepository {
	return &OutcomeHistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts record. Replayed records with a known id are ignored.
func (r *OutcomeHistoryRepository) Append(ctx context.Context, record domain.OutcomeRecord) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	stmt, args, err := r.builder.Insert(outcomeHistoryTable).
		Columns("id", "kind", "operation", "status", "subject", "message", "account", "request_id", "recorded_at").
		Values(
			id,
			string(record.Kind),
			string(record.Operation),
			string(record.Status),
			record.Subject,
			record.Message,
			record.Account,
			record.RequestID,
			record.Recorded.UTC(),
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert outcome sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *OutcomeHistoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.OutcomeRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	stmt, args, err := r.builder.
		Select("id::text", "kind", "operation", "status", "subject", "message", "account", "request_id", "recorded_at").
		From(outcomeHistoryTable).
		OrderBy("recorded_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list outcomes sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	records := make([]domain.OutcomeRecord, 0, limit)
	for rows.Next() {
		var (
			rec                     domain.OutcomeRecord
			kind, operation, status string
		)
		if err := rows.Scan(&rec.ID, &kind, &operation, &status, &rec.Subject, &rec.Message, &rec.Account, &rec.RequestID, &rec.Recorded); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Kind = domain.EntityKind(kind)
		rec.Operation = domain.OutcomeOperation(operation)
		rec.Status = domain.OutcomeStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return records, nil
}

var _ port.OutcomeHistory = (*OutcomeHistoryRepository)(nil)
