// Package ptvdb records reconstruction and tracking runs in a sqlite
// database so past runs over a result directory can be audited without
// re-reading the result files.
package ptvdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the run database at path and
// applies any pending schema migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: m is not closed because that would close the underlying DB
	// connection.
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Run is one recorded run, sequence or tracking.
type Run struct {
	ID           string
	Kind         string
	First, Last  int
	Step         int
	TotalPoints  int
	FailedFrames int
	LinksMade    int
	GapLinks     int
	Finished     bool
}

// Run kinds.
const (
	KindSequence = "sequence"
	KindTracking = "tracking"
)

// RecordRun creates a run row and returns its id.
func (db *DB) RecordRun(kind string, r ptv.FrameRange) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO runs (run_id, kind, first_frame, last_frame, frame_step)
		VALUES (?, ?, ?, ?, ?)
	`, id, kind, r.First, r.Last, r.Step)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordFrame stores one frame's outcome for a run. errText is empty
// for a successful frame.
func (db *DB) RecordFrame(runID string, frame, nPoints int, errText string) error {
	var e interface{}
	if errText != "" {
		e = errText
	}
	_, err := db.Exec(`
		INSERT INTO frames (run_id, frame, n_points, error)
		VALUES (?, ?, ?, ?)
	`, runID, frame, nPoints, e)
	if err != nil {
		return fmt.Errorf("failed to insert frame %d: %w", frame, err)
	}
	return nil
}

// FinishSequence closes out a sequence run with its totals.
func (db *DB) FinishSequence(runID string, totalPoints, failedFrames int) error {
	_, err := db.Exec(`
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP, total_points = ?, failed_frames = ?
		WHERE run_id = ?
	`, totalPoints, failedFrames, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// FinishTracking closes out a tracking run with its link statistics.
func (db *DB) FinishTracking(runID string, stats *ptv.TrackStats) error {
	_, err := db.Exec(`
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP, links_made = ?, gap_links = ?
		WHERE run_id = ?
	`, stats.LinksMade, stats.GapLinks, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// Runs lists recorded runs, most recent first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, kind, first_frame, last_frame, frame_step,
		       total_points, failed_frames, links_made, gap_links,
		       finished_at IS NOT NULL
		FROM runs ORDER BY started_at DESC, run_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.First, &r.Last, &r.Step,
			&r.TotalPoints, &r.FailedFrames, &r.LinksMade, &r.GapLinks, &r.Finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// FrameCounts returns frame number to point count for a run, failed
// frames excluded.
func (db *DB) FrameCounts(runID string) (map[int]int, error) {
	rows, err := db.Query(`
		SELECT frame, n_points FROM frames
		WHERE run_id = ? AND error IS NULL
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var frame, n int
		if err := rows.Scan(&frame, &n); err != nil {
			return nil, err
		}
		counts[frame] = n
	}
	return counts, rows.Err()
}
