package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

// ErrOutcomeExists is returned when a simulation is written to the ledger
// twice.
var ErrOutcomeExists = errors.New("outcome already recorded")

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	simulation_id   TEXT    NOT NULL UNIQUE,
	contribution_id TEXT    NOT NULL,
	opportunity_id  TEXT    NOT NULL,
	repository      TEXT    NOT NULL,
	risk            TEXT    NOT NULL,
	seed            INTEGER NOT NULL,
	max_rounds      INTEGER NOT NULL,
	final_state     TEXT    NOT NULL,
	rounds          INTEGER NOT NULL,
	events          TEXT    NOT NULL,
	recorded_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_risk ON outcomes (risk);
`

// OutcomeQuery narrows ListOutcomes. Zero values match everything.
type OutcomeQuery struct {
	Risk  models.RiskCategory
	Limit int
}

// OutcomeLedger is an append-only SQLite record of terminal simulations. It
// is the source of truth for rebuilding calibration.
type OutcomeLedger struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// OpenOutcomeLedger opens (creating if needed) the ledger database at path.
func OpenOutcomeLedger(path string) (*OutcomeLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer; concurrent simulations share one connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(ledgerSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &OutcomeLedger{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (l *OutcomeLedger) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

// RecordOutcome appends one terminal simulation.
func (l *OutcomeLedger) RecordOutcome(ctx context.Context, rec models.SimulationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil || l.sqlDB == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("simulation id is required")
	}
	if !rec.FinalState.IsTerminal() {
		return fmt.Errorf("simulation %s: final state %q is not terminal", rec.ID, rec.FinalState)
	}
	events := rec.Events
	if events == nil {
		events = []models.FeedbackEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	_, err = l.sqlDB.ExecContext(
		ctx,
		`INSERT INTO outcomes (
		   simulation_id,
		   contribution_id,
		   opportunity_id,
		   repository,
		   risk,
		   seed,
		   max_rounds,
		   final_state,
		   rounds,
		   events,
		   recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ContributionID,
		rec.OpportunityID,
		rec.Repository,
		string(rec.Risk),
		int64(rec.Seed),
		rec.MaxRounds,
		string(rec.FinalState),
		rec.Rounds,
		string(eventsJSON),
		l.now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("simulation %s: %w", rec.ID, ErrOutcomeExists)
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns recorded outcomes in the order they were written.
func (l *OutcomeLedger) ListOutcomes(ctx context.Context, q OutcomeQuery) ([]models.SimulationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l == nil || l.sqlDB == nil {
		return nil, fmt.Errorf("ledger is not configured")
	}

	query := `SELECT simulation_id, contribution_id, opportunity_id, repository, risk,
	                 seed, max_rounds, final_state, rounds, events
	            FROM outcomes`
	var args []any
	if q.Risk != "" {
		query += ` WHERE risk = ?`
		args = append(args, string(q.Risk))
	}
	query += ` ORDER BY seq ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := l.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	records := make([]models.SimulationRecord, 0)
	for rows.Next() {
		var (
			rec        models.SimulationRecord
			risk       string
			seed       int64
			finalState string
			eventsJSON string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ContributionID,
			&rec.OpportunityID,
			&rec.Repository,
			&risk,
			&seed,
			&rec.MaxRounds,
			&finalState,
			&rec.Rounds,
			&eventsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Risk = models.RiskCategory(risk)
		rec.Seed = uint64(seed)
		rec.FinalState = models.LifecycleState(finalState)
		if err := json.Unmarshal([]byte(eventsJSON), &rec.Events); err != nil {
			return nil, fmt.Errorf("decode events for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return records, nil
}

// CountOutcomes returns the number of recorded outcomes.
func (l *OutcomeLedger) CountOutcomes(ctx context.Context) (int, error) {
	if l == nil || l.sqlDB == nil {
		return 0, fmt.Errorf("ledger is not configured")
	}
	var n int
	if err := l.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

// Clear deletes every recorded outcome.
func (l *OutcomeLedger) Clear(ctx context.Context) error {
	if l == nil || l.sqlDB == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if _, err := l.sqlDB.ExecContext(ctx, `DELETE FROM outcomes`); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
