package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Run is the metadata of one persisted processing run.
type Run struct {
	RunID      string          `json:"run_id"`
	CreatedAt  int64           `json:"created_at_ns"`
	SourceFile string          `json:"source_file"`
	Method     string          `json:"method"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	NT         int             `json:"nt"`
	NY         int             `json:"ny"`
	NX         int             `json:"nx"`
	Times      []int64         `json:"times"`
	Positions  int             `json:"positions"`
	ElapsedNs  int64           `json:"elapsed_ns"`
	Outliers   int             `json:"outliers"`
}

// RunStore provides persistence for runs and their velocity fields.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// nullable maps NaN to SQL NULL; SQLite has no NaN.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// Insert persists run together with every vector of f. flagged optionally
// holds one outlier mask per time step. If RunID is empty a UUID is
// generated; the field shape overrides run.NT/NY/NX.
func (s *RunStore) Insert(run *Run, f *field.Field, flagged []*field.Mask) error {
	if len(flagged) != 0 && len(flagged) != f.NT {
		return fmt.Errorf("got %d outlier masks for %d time steps", len(flagged), f.NT)
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	run.NT, run.NY, run.NX = f.NT, f.NY, f.NX
	run.Outliers = 0
	for _, m := range flagged {
		if m != nil {
			run.Outliers += m.Count()
		}
	}

	times, err := json.Marshal(run.Times)
	if err != nil {
		return fmt.Errorf("encode times: %w", err)
	}
	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO ebiv_runs (
				run_id, created_at_ns, source_file, method, params_json,
				nt, ny, nx, times_json, positions, elapsed_ns, outliers
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.SourceFile, run.Method, params,
			run.NT, run.NY, run.NX, string(times), run.Positions, run.ElapsedNs, run.Outliers,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO ebiv_vectors (
				run_id, t_index, row_index, col_index,
				cx, cy, vx, vy, score, event_count, flagged
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare vector insert: %w", err)
		}
		defer stmt.Close()

		for t := 0; t < f.NT; t++ {
			for r := 0; r < f.NY; r++ {
				for c := 0; c < f.NX; c++ {
					v := f.At(t, r, c)
					isFlagged := len(flagged) > 0 && flagged[t] != nil && flagged[t].At(r, c)
					if _, err := stmt.Exec(
						run.RunID, t, r, c,
						nullable(v.CX), nullable(v.CY), nullable(v.VX), nullable(v.VY),
						nullable(v.Score), nullable(v.Count), isFlagged,
					); err != nil {
						return fmt.Errorf("insert vector (%d,%d,%d): %w", t, r, c, err)
					}
				}
			}
		}
		return tx.Commit()
	})
}

const runColumns = `run_id, created_at_ns, source_file, method, params_json,
	nt, ny, nx, times_json, positions, elapsed_ns, outliers`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run    Run
		params sql.NullString
		times  string
	)
	if err := row.Scan(
		&run.RunID, &run.CreatedAt, &run.SourceFile, &run.Method, &params,
		&run.NT, &run.NY, &run.NX, &times, &run.Positions, &run.ElapsedNs, &run.Outliers,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	if err := json.Unmarshal([]byte(times), &run.Times); err != nil {
		return nil, fmt.Errorf("decode times of run %s: %w", run.RunID, err)
	}
	return &run, nil
}

// Get returns the metadata of one run.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM ebiv_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM ebiv_runs ORDER BY created_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadField rebuilds the velocity field of a run. Missing components come
// back as NaN. The outlier masks are nil when no vector was flagged.
func (s *RunStore) LoadField(runID string) (*field.Field, []*field.Mask, error) {
	run, err := s.Get(runID)
	if err != nil {
		return nil, nil, err
	}
	f, err := field.New(run.NT, run.NY, run.NX)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(`
		SELECT t_index, row_index, col_index, cx, cy, vx, vy, score, event_count, flagged
		FROM ebiv_vectors WHERE run_id = ?`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	masks := make([]*field.Mask, run.NT)
	for i := range masks {
		masks[i] = field.NewMask(run.NY, run.NX)
	}
	flaggedAny := false
	for rows.Next() {
		var (
			t, r, c int
			comps   [field.Components]sql.NullFloat64
			flagged bool
		)
		if err := rows.Scan(&t, &r, &c,
			&comps[0], &comps[1], &comps[2], &comps[3], &comps[4], &comps[5], &flagged); err != nil {
			return nil, nil, fmt.Errorf("scan vector: %w", err)
		}
		if t < 0 || t >= run.NT || r < 0 || r >= run.NY || c < 0 || c >= run.NX {
			return nil, nil, fmt.Errorf("vector (%d,%d,%d) outside run shape %dx%dx%d", t, r, c, run.NT, run.NY, run.NX)
		}
		var vals [field.Components]float64
		for i, v := range comps {
			vals[i] = math.NaN()
			if v.Valid {
				vals[i] = v.Float64
			}
		}
		f.Set(t, r, c, field.Vector{
			CX: vals[field.CompCX], CY: vals[field.CompCY],
			VX: vals[field.CompVX], VY: vals[field.CompVY],
			Score: vals[field.CompScore], Count: vals[field.CompCount],
		})
		if flagged {
			masks[t].Set(r, c, true)
			flaggedAny = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if !flaggedAny {
		masks = nil
	}
	return f, masks, nil
}

// Delete removes a run and its vectors.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM ebiv_vectors WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM ebiv_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return tx.Commit()
	})
}
