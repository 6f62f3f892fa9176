package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides PostgreSQL persistence for taint reports. It implements the
// reporting.Sink interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlInsertReport = `
        INSERT INTO taint_reports (id, scope_id, observed_at, value, evidence)
        VALUES ($1, $2, $3, $4, $5);
    `

// Persist inserts a single taint report.
func (s *Store) Persist(ctx context.Context, report schemas.TaintReport) error {
	evidence, err := json.Marshal(report.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence for report %s: %w", report.ID, err)
	}

	_, err = s.pool.Exec(ctx, sqlInsertReport,
		report.ID, report.ScopeID, report.ObservedAt.UTC(), report.Value, evidence)
	if err != nil {
		return fmt.Errorf("failed to insert taint report %s: %w", report.ID, err)
	}
	return nil
}

// PersistBatch inserts many reports in one transaction using CopyFrom.
func (s *Store) PersistBatch(ctx context.Context, reports []schemas.TaintReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after Commit returns pgx.ErrTxClosed; that is the normal
		// success path, not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]interface{}, len(reports))
	for i, r := range reports {
		evidence, err := json.Marshal(r.Evidence)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence for report %s: %w", r.ID, err)
		}
		rows[i] = []interface{}{r.ID, r.ScopeID, r.ObservedAt.UTC(), r.Value, evidence}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"taint_reports"},
		[]string{"id", "scope_id", "observed_at", "value", "evidence"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy taint reports: %w", err)
	}
	if int(copyCount) != len(reports) {
		return fmt.Errorf("mismatch in copied report count: expected %d, got %d", len(reports), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReportsByScopeID loads every report recorded for one analysis scope,
// oldest first.
func (s *Store) GetReportsByScopeID(ctx context.Context, scopeID string) ([]schemas.TaintReport, error) {
	query := `
        SELECT id, observed_at, value, evidence
        FROM taint_reports
        WHERE scope_id = $1
        ORDER BY observed_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query taint reports: %w", err)
	}
	defer rows.Close()

	var reports []schemas.TaintReport
	for rows.Next() {
		var r schemas.TaintReport
		var evidence []byte

		if err := rows.Scan(&r.ID, &r.ObservedAt, &r.Value, &evidence); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &r.Evidence); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence for report %s: %w", r.ID, err)
			}
		}
		r.ScopeID = scopeID
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return reports, nil
}
