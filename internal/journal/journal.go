// Package journal keeps a SQLite history of build passes and the files each
// pass wrote.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/inful/mdfp"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/sitebuilder/internal/events"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/site"
)

// Pass statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Pass is one recorded build pass.
type Pass struct {
	BuildID    string
	Project    string
	Status     string
	Error      string
	Built      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// File is one file written during a pass.
type File struct {
	BuildID     string
	Source      string
	Destination string
	Program     string
	Marker      string
	// Fingerprint identifies the content of text sources.
	Fingerprint string
	BuiltAt     time.Time
}

// Journal records build history in SQLite.
type Journal struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens (creating when needed) the journal at dbPath. Use ":memory:"
// for a throwaway journal.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, now: time.Now}
	if err := j.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS passes (
		build_id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		built INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		program TEXT NOT NULL,
		marker TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		built_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_build_id ON files(build_id);
	CREATE INDEX IF NOT EXISTS idx_files_source ON files(source);
	CREATE INDEX IF NOT EXISTS idx_passes_started ON passes(started_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Attach subscribes the journal to a builder's lifecycle events.
func (j *Journal) Attach(b *site.Builder) {
	project := b.ProjectDir()
	var buildID string
	events.Subscribe(b.Bus(), func(ctx context.Context, e site.BuildStarted) error {
		buildID = e.BuildID
		return j.begin(ctx, e.BuildID, project)
	})
	events.Subscribe(b.Bus(), func(ctx context.Context, e site.FileBuilt) error {
		return j.recordFile(ctx, buildID, e)
	})
	events.Subscribe(b.Bus(), func(ctx context.Context, e site.BuildFinishing) error {
		return j.finish(ctx, e.BuildID, StatusFinished, "", len(e.Built))
	})
}

// MarkFailed records that a pass aborted with err.
func (j *Journal) MarkFailed(ctx context.Context, buildID string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return j.finish(ctx, buildID, StatusFailed, msg, -1)
}

func (j *Journal) begin(ctx context.Context, buildID, project string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO passes (build_id, project, status, started_at) VALUES (?, ?, ?, ?)",
		buildID, project, StatusRunning, j.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

func (j *Journal) finish(ctx context.Context, buildID, status, msg string, built int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	query := "UPDATE passes SET status = ?, error = ?, finished_at = ? WHERE build_id = ?"
	args := []any{status, msg, j.now().UnixNano(), buildID}
	if built >= 0 {
		query = "UPDATE passes SET status = ?, error = ?, finished_at = ?, built = ? WHERE build_id = ?"
		args = []any{status, msg, j.now().UnixNano(), built, buildID}
	}
	if _, err := j.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update pass: %w", err)
	}
	return nil
}

func (j *Journal) recordFile(ctx context.Context, buildID string, e site.FileBuilt) error {
	c := e.Context
	fp := ""
	if c.IsText() {
		var err error
		if fp, err = Fingerprint(c); err != nil {
			return err
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO files (build_id, source, destination, program, marker, fingerprint, built_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		buildID, c.Source(), c.Destination(), c.ProgramName(), e.Marker, fp, j.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// Fingerprint hashes a page's own header fields and body.
func Fingerprint(c *site.Context) (string, error) {
	doc := c.Document()
	var fields []frontmatter.Field
	for _, k := range doc.Config.LocalKeys() {
		if k == mdfp.FingerprintField {
			continue
		}
		v, _ := doc.Config.LocalGet(k)
		fields = append(fields, frontmatter.Field{Key: k, Value: v})
	}
	header := ""
	if len(fields) > 0 {
		serialized, err := frontmatter.SerializeYAML(fields, frontmatter.Style{Newline: "\n"})
		if err != nil {
			return "", fmt.Errorf("serialize header: %w", err)
		}
		header = strings.TrimSuffix(string(serialized), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(header, string(doc.Body)), nil
}

// History returns the most recent passes, newest first.
func (j *Journal) History(ctx context.Context, limit int) ([]Pass, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT build_id, project, status, error, built, started_at, finished_at FROM passes ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		var p Pass
		var started, finished int64
		if err := rows.Scan(&p.BuildID, &p.Project, &p.Status, &p.Error, &p.Built, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.StartedAt = time.Unix(0, started)
		if finished > 0 {
			p.FinishedAt = time.Unix(0, finished)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Files returns the files written by a pass in build order.
func (j *Journal) Files(ctx context.Context, buildID string) ([]File, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx,
		"SELECT build_id, source, destination, program, marker, fingerprint, built_at FROM files WHERE build_id = ? ORDER BY id",
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		var built int64
		if err := rows.Scan(&f.BuildID, &f.Source, &f.Destination, &f.Program, &f.Marker, &f.Fingerprint, &built); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.BuiltAt = time.Unix(0, built)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
