package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/voxlate/voxlate/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store archives the segment logs of finished jobs in sqlite, so transcripts
// outlive the in-memory registry. It is write-mostly: jobs are never hydrated
// back into the registry from here.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// ArchiveJob stores the job's metadata and segment log. Archiving the same
// job again replaces its previous rows.
func (s *Store) ArchiveJob(ctx context.Context, record *jobs.Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO archived_jobs (
			id, source_url, source_language, target_language, state, error, output_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state,
			error=excluded.error,
			output_path=excluded.output_path`,
		record.ID,
		record.SourceURL,
		record.SourceLanguage,
		record.TargetLanguage,
		string(record.State),
		record.ErrorDetail,
		record.OutputPath,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("archive job %s: %w", record.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM archived_segments WHERE job_id = ?`, record.ID); err != nil {
		return fmt.Errorf("clear segments for %s: %w", record.ID, err)
	}
	for i, segment := range record.Segments {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO archived_segments (job_id, position, original_text, translated_text)
			 VALUES (?, ?, ?, ?)`,
			record.ID, i, segment.OriginalText, segment.TranslatedText,
		); err != nil {
			return fmt.Errorf("archive segment %d of %s: %w", i, record.ID, err)
		}
	}

	return tx.Commit()
}

// Segments reads back the archived segment log of a job in order.
func (s *Store) Segments(ctx context.Context, jobID string) ([]jobs.Segment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT original_text, translated_text
		 FROM archived_segments
		 WHERE job_id = ?
		 ORDER BY position ASC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]jobs.Segment, 0)
	for rows.Next() {
		var segment jobs.Segment
		if err := rows.Scan(&segment.OriginalText, &segment.TranslatedText); err != nil {
			return nil, err
		}
		ret = append(ret, segment)
	}
	return ret, rows.Err()
}
