// Package postgres archives check results in PostgreSQL through bun.
// It only implements store.ResultStore; entities stay in the primary store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// resultRow is the check_results table. Rows are only ever inserted.
type resultRow struct {
	bun.BaseModel `bun:"table:check_results,alias:cr"`

	ID           string    `bun:",pk"`
	TargetID     string    `bun:",notnull"`
	ProxyID      string    `bun:",nullzero"`
	Available    bool      `bun:",notnull"`
	ErrorMessage string    `bun:",nullzero"`
	CheckedAt    time.Time `bun:",notnull"`
}

func fromDomain(r *domain.CheckResult) *resultRow {
	return &resultRow{
		ID:           r.ID,
		TargetID:     r.TargetID,
		ProxyID:      r.ProxyID,
		Available:    r.Available,
		ErrorMessage: r.ErrorMessage,
		CheckedAt:    r.CheckedAt,
	}
}

func (r *resultRow) toDomain() *domain.CheckResult {
	return &domain.CheckResult{
		ID:           r.ID,
		TargetID:     r.TargetID,
		ProxyID:      r.ProxyID,
		Available:    r.Available,
		ErrorMessage: r.ErrorMessage,
		CheckedAt:    r.CheckedAt,
	}
}

type Archive struct {
	db *bun.DB
}

var _ store.ResultStore = (*Archive)(nil)

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string) (*Archive, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping result archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// InitSchema creates the results table and its lookup index if missing.
func (a *Archive) InitSchema(ctx context.Context) error {
	_, err := a.db.NewCreateTable().
		Model((*resultRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create check_results: %w", err)
	}

	_, err = a.db.NewCreateIndex().
		Model((*resultRow)(nil)).
		Index("check_results_target_checked_idx").
		Column("target_id", "checked_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create check_results index: %w", err)
	}
	return nil
}

func (a *Archive) AppendResult(ctx context.Context, r *domain.CheckResult) error {
	if _, err := a.db.NewInsert().Model(fromDomain(r)).Exec(ctx); err != nil {
		return fmt.Errorf("error inserting result: %w", err)
	}
	return nil
}

// LatestResults picks the newest row per target with DISTINCT ON.
func (a *Archive) LatestResults(ctx context.Context, targetIDs []string) (map[string]*domain.CheckResult, error) {
	out := make(map[string]*domain.CheckResult, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}

	var rows []resultRow
	err := a.db.NewSelect().
		Model(&rows).
		DistinctOn("target_id").
		Where("target_id IN (?)", bun.In(targetIDs)).
		OrderExpr("target_id, checked_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error selecting latest results: %w", err)
	}

	for i := range rows {
		out[rows[i].TargetID] = rows[i].toDomain()
	}
	return out, nil
}

func (a *Archive) DeleteResults(ctx context.Context, targetID string) error {
	_, err := a.db.NewDelete().
		Model((*resultRow)(nil)).
		Where("target_id = ?", targetID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error deleting results: %w", err)
	}
	return nil
}

func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Archive) Close() error {
	return a.db.Close()
}
