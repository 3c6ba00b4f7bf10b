package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelstreet/navtree/internal/model"
)

// AuditStore implements platform.AuditRecorder.
type AuditStore struct {
	db     *sql.DB
	teamID string
}

// NewAuditStore returns an audit store for teamID, creating its table if
// needed.
func NewAuditStore(db *sql.DB, teamID string) (*AuditStore, error) {
	if teamID == "" {
		return nil, fmt.Errorf("audit store: team id is required")
	}
	s := &AuditStore{db: db, teamID: teamID}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("audit store: migrate: %w", err)
	}
	return s, nil
}

func (s *AuditStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS executions (
		record_id TEXT PRIMARY KEY,
		team_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		tree_id TEXT NOT NULL DEFAULT '',
		node_id TEXT NOT NULL DEFAULT '',
		edge_id TEXT NOT NULL DEFAULT '',
		device_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		command TEXT NOT NULL,
		params JSON,
		success INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		confidence REAL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_node ON executions (team_id, tree_id, node_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_executions_edge ON executions (team_id, tree_id, edge_id, started_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// RecordExecutionBatch implements platform.AuditRecorder. The batch is
// written in one transaction.
func (s *AuditStore) RecordExecutionBatch(ctx context.Context, records []model.ExecutionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record executions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO executions (
		record_id, team_id, run_id, tree_id, node_id, edge_id, device_id, category, command, params, success, started_at, elapsed_ms, message, confidence
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record executions: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		var params any
		if len(r.Params) > 0 {
			b, err := json.Marshal(r.Params)
			if err != nil {
				return fmt.Errorf("encode params of %s: %w", r.ID, err)
			}
			params = string(b)
		}
		var conf any
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, s.teamID, r.RunID, r.TreeID, r.NodeID, r.EdgeID, r.DeviceID, string(r.Category), r.Command,
			params, r.Success, formatTime(r.StartedAt), r.ElapsedMs, r.Message, conf,
		); err != nil {
			return fmt.Errorf("insert execution %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record executions: %w", err)
	}
	return nil
}

// Query selects execution records. Empty fields match everything.
type Query struct {
	TreeID   string
	NodeID   string
	EdgeID   string
	RunID    string
	Category model.RecordCategory
	Limit    int
}

// DefaultLimit caps Recent when Query.Limit is not positive.
const DefaultLimit = 50

// Recent returns matching records, newest first.
func (s *AuditStore) Recent(ctx context.Context, q Query) ([]model.ExecutionRecord, error) {
	where := []string{"team_id = ?"}
	args := []any{s.teamID}
	for _, f := range []struct {
		col, val string
	}{
		{"tree_id", q.TreeID},
		{"node_id", q.NodeID},
		{"edge_id", q.EdgeID},
		{"run_id", q.RunID},
		{"category", string(q.Category)},
	} {
		if f.val != "" {
			where = append(where, f.col+" = ?")
			args = append(args, f.val)
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, run_id, tree_id, node_id, edge_id, device_id, category, command, params, success, started_at, elapsed_ms, message, confidence
		FROM executions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ExecutionRecord
	for rows.Next() {
		r, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanExecution(rows *sql.Rows) (model.ExecutionRecord, error) {
	var (
		r        model.ExecutionRecord
		category string
		params   sql.NullString
		started  string
		conf     sql.NullFloat64
	)
	if err := rows.Scan(&r.ID, &r.RunID, &r.TreeID, &r.NodeID, &r.EdgeID, &r.DeviceID, &category, &r.Command,
		&params, &r.Success, &started, &r.ElapsedMs, &r.Message, &conf); err != nil {
		return r, fmt.Errorf("scan execution: %w", err)
	}
	r.Category = model.RecordCategory(category)
	r.StartedAt = parseTime(started)
	if params.Valid && params.String != "" {
		_ = json.Unmarshal([]byte(params.String), &r.Params)
	}
	if conf.Valid {
		v := conf.Float64
		r.Confidence = &v
	}
	return r, nil
}
