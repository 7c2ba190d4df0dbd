package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqWorld reqKind = iota + 1
	reqStep
)

type req struct {
	kind reqKind

	world WorldRecord
	step  engine.StepRecord
}

// WorldRecord is one accepted or rejected level with its validation report.
type WorldRecord struct {
	WorldID   string
	Env       string
	Seed      int64
	Attempt   int
	Digest    string
	Path      string
	Report    validate.Report
	CreatedAt time.Time
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tuning (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			world_id TEXT PRIMARY KEY,
			env TEXT NOT NULL,
			seed INTEGER NOT NULL,
			attempt INTEGER NOT NULL,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			valid INTEGER NOT NULL,
			min_actions REAL,
			goal_share REAL,
			report_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_worlds_env_valid ON worlds(env, valid);`,
		`CREATE TABLE IF NOT EXISTS issues (
			world_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			path TEXT,
			message TEXT NOT NULL,
			PRIMARY KEY (world_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_issues_category ON issues(category, severity);`,
		`CREATE TABLE IF NOT EXISTS steps (
			episode TEXT NOT NULL,
			step INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			world_id TEXT NOT NULL,
			env TEXT NOT NULL,
			action_json TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reward REAL NOT NULL,
			done INTEGER NOT NULL,
			reason TEXT,
			digest TEXT NOT NULL,
			PRIMARY KEY (episode, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_world ON steps(world_id, episode);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts records discarded because the writer fell behind.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		// Level files and trajectory logs remain the source of truth.
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RecordWorld(rec WorldRecord) {
	if s == nil || s.closed.Load() || rec.WorldID == "" {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.enqueue(req{kind: reqWorld, world: rec})
}

// WriteStep makes the index usable as an engine.StepSink.
func (s *SQLiteIndex) WriteStep(rec engine.StepRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqStep, step: rec})
	return nil
}

// UpsertTuning stores the effective tuning so indexed worlds can be traced to
// the parameters that produced them. It returns the tuning digest.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tuning(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('tuning_digest',?)`, digest); err != nil {
		return "", err
	}
	return digest, tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertWorld, _ := s.db.Prepare(`INSERT OR REPLACE INTO worlds(world_id,env,seed,attempt,digest,path,valid,min_actions,goal_share,report_json,created_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	deleteIssues, _ := s.db.Prepare(`DELETE FROM issues WHERE world_id=?`)
	insertIssue, _ := s.db.Prepare(`INSERT OR REPLACE INTO issues(world_id,seq,category,severity,path,message) VALUES(?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(episode,step,seq,world_id,env,action_json,outcome,reward,done,reason,digest) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertWorld, deleteIssues, insertIssue, insertStep} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second

		// Rejected actions share a step number with the next valid one, so
		// rows are keyed by a per-episode sequence.
		stepSeq = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqWorld:
			w := r.world
			rep, _ := json.Marshal(w.Report)
			valid := 0
			if w.Report.Valid {
				valid = 1
			}
			if insertWorld == nil || deleteIssues == nil || insertIssue == nil {
				continue
			}
			if _, err := tx.Stmt(insertWorld).Exec(
				w.WorldID, w.Env, w.Seed, w.Attempt, w.Digest, w.Path, valid,
				w.Report.Stats["min_actions"], w.Report.Stats["goal_share"],
				string(rep), w.CreatedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback()
				continue
			}
			if _, err := tx.Stmt(deleteIssues).Exec(w.WorldID); err != nil {
				rollback()
				continue
			}
			for i, is := range w.Report.Issues {
				if _, err := tx.Stmt(insertIssue).Exec(w.WorldID, i, string(is.Category), string(is.Severity), is.Path, is.Message); err != nil {
					rollback()
					break
				}
			}
			opCount++

		case reqStep:
			st := r.step
			if insertStep == nil {
				continue
			}
			act, _ := json.Marshal(st.Action)
			seq := stepSeq[st.Episode]
			stepSeq[st.Episode] = seq + 1
			done := 0
			if st.Done {
				done = 1
			}
			if _, err := tx.Stmt(insertStep).Exec(
				st.Episode, st.Step, seq, st.WorldID, st.Env, string(act),
				string(st.Outcome), st.Reward, done, string(st.Reason), st.Digest,
			); err != nil {
				rollback()
				continue
			}
			opCount++
			if st.Done {
				delete(stepSeq, st.Episode)
			}
		}
		flushIfNeeded()
	}

	commit()
}
