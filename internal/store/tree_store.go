package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelstreet/navtree/internal/model"
)

// TreeStore implements platform.TreePersistence.
type TreeStore struct {
	db     *sql.DB
	teamID string
	now    func() time.Time
}

// TreeSummary describes a stored tree without its contents.
type TreeSummary struct {
	ID        string    `yaml:"id"         json:"id"`
	Name      string    `yaml:"name"       json:"name"`
	Nodes     int       `yaml:"nodes"      json:"nodes"`
	Edges     int       `yaml:"edges"      json:"edges"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// NewTreeStore returns a tree store for teamID, creating its table if needed.
func NewTreeStore(db *sql.DB, teamID string) (*TreeStore, error) {
	if teamID == "" {
		return nil, fmt.Errorf("tree store: team id is required")
	}
	s := &TreeStore{db: db, teamID: teamID, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("tree store: migrate: %w", err)
	}
	return s, nil
}

func (s *TreeStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS trees (
		team_id TEXT NOT NULL,
		tree_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		node_count INTEGER NOT NULL DEFAULT 0,
		edge_count INTEGER NOT NULL DEFAULT 0,
		body JSON NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (team_id, tree_id)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// LoadTree implements platform.TreePersistence.
func (s *TreeStore) LoadTree(ctx context.Context, treeID string) (model.Tree, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM trees WHERE team_id = ? AND tree_id = ?`, s.teamID, treeID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tree{}, fmt.Errorf("%w: %s", ErrTreeNotFound, treeID)
	}
	if err != nil {
		return model.Tree{}, fmt.Errorf("load tree %s: %w", treeID, err)
	}
	var tree model.Tree
	if err := json.Unmarshal([]byte(body), &tree); err != nil {
		return model.Tree{}, fmt.Errorf("decode tree %s: %w", treeID, err)
	}
	return tree, nil
}

// SaveTree implements platform.TreePersistence. An existing tree with the
// same id is replaced.
func (s *TreeStore) SaveTree(ctx context.Context, tree model.Tree) error {
	if tree.ID == "" {
		return fmt.Errorf("save tree: id is required")
	}
	body, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", tree.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trees (team_id, tree_id, name, node_count, edge_count, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (team_id, tree_id) DO UPDATE SET
			name = excluded.name,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		s.teamID, tree.ID, tree.Name, len(tree.Nodes), len(tree.Edges), string(body), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save tree %s: %w", tree.ID, err)
	}
	return nil
}

// DeleteTree removes a tree.
func (s *TreeStore) DeleteTree(ctx context.Context, treeID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trees WHERE team_id = ? AND tree_id = ?`, s.teamID, treeID)
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", treeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTreeNotFound, treeID)
	}
	return nil
}

// List returns the team's trees, most recently updated first.
func (s *TreeStore) List(ctx context.Context) ([]TreeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tree_id, name, node_count, edge_count, updated_at
		FROM trees
		WHERE team_id = ?
		ORDER BY updated_at DESC, tree_id`, s.teamID)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TreeSummary
	for rows.Next() {
		var (
			t       TreeSummary
			updated string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Nodes, &t.Edges, &updated); err != nil {
			return nil, fmt.Errorf("list trees: %w", err)
		}
		t.UpdatedAt = parseTime(updated)
		out = append(out, t)
	}
	return out, rows.Err()
}
