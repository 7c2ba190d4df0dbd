package indexdb

import (
	"context"
	"database/sql"
)

type WorldRow struct {
	WorldID    string  `json:"world_id"`
	Env        string  `json:"env"`
	Seed       int64   `json:"seed"`
	Attempt    int     `json:"attempt"`
	Digest     string  `json:"digest"`
	Path       string  `json:"path"`
	Valid      bool    `json:"valid"`
	MinActions float64 `json:"min_actions"`
	GoalShare  float64 `json:"goal_share"`
	CreatedAt  string  `json:"created_at"`
}

// Worlds lists indexed worlds, newest first. An empty env matches all.
func (s *SQLiteIndex) Worlds(ctx context.Context, env string, validOnly bool) ([]WorldRow, error) {
	q := `SELECT world_id,env,seed,attempt,digest,path,valid,COALESCE(min_actions,0),COALESCE(goal_share,0),created_at
		FROM worlds WHERE (?='' OR env=?) AND (?=0 OR valid=1) ORDER BY created_at DESC, world_id`
	only := 0
	if validOnly {
		only = 1
	}
	rows, err := s.db.QueryContext(ctx, q, env, env, only)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorldRow
	for rows.Next() {
		var r WorldRow
		var valid int
		if err := rows.Scan(&r.WorldID, &r.Env, &r.Seed, &r.Attempt, &r.Digest, &r.Path, &valid, &r.MinActions, &r.GoalShare, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Valid = valid == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// IssueCounts tallies indexed issues by category.
func (s *SQLiteIndex) IssueCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM issues GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

func scanCount(row *sql.Row) (int, error) {
	var n int
	err := row.Scan(&n)
	return n, err
}

// StepCount is the number of indexed step rows for a world.
func (s *SQLiteIndex) StepCount(ctx context.Context, worldID string) (int, error) {
	return scanCount(s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps WHERE world_id=?`, worldID))
}
