// Package store persists finished runs and their replay history in
// SQLite so runs can be inspected and re-animated later.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/replay"
	"github.com/mlowell/cutsim/internal/sim"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	duration     REAL NOT NULL,
	seed         INTEGER NOT NULL,
	num_objects  INTEGER NOT NULL,
	outcome      TEXT NOT NULL,
	final_time   REAL NOT NULL,
	cuts         INTEGER NOT NULL,
	reason       TEXT
);

CREATE TABLE IF NOT EXISTS run_segments (
	segment_id   TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	t0           REAL NOT NULL,
	t1           REAL NOT NULL,
	model_json   TEXT NOT NULL,
	state_dim    INTEGER NOT NULL,
	samples      BLOB NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_run_segments_run
	ON run_segments(run_id, seq);
`

// #endregion schema

// #region records

// RunRecord is the stored summary of one run.
type RunRecord struct {
	RunID      string
	CreatedAt  time.Time
	Duration   float64
	Seed       int64
	NumObjects int
	Outcome    string
	FinalTime  float64
	Cuts       int
	Reason     string
}

// #endregion records

// #region store

// Store manages run history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region save

// SaveRun writes a run summary and its segments in one transaction and
// returns the generated run ID.
func (s *Store) SaveRun(rec RunRecord, history *replay.Buffer) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var reasonPtr interface{}
	if rec.Reason != "" {
		reasonPtr = rec.Reason
	}

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, created_at, duration, seed, num_objects, outcome, final_time, cuts, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now.Format(time.RFC3339Nano), rec.Duration, rec.Seed, rec.NumObjects,
		rec.Outcome, rec.FinalTime, rec.Cuts, reasonPtr,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for seq, seg := range history.Segments() {
		specJSON, err := json.Marshal(seg.Model.Spec())
		if err != nil {
			return "", fmt.Errorf("marshal model: %w", err)
		}
		dim := 0
		if len(seg.Samples) > 0 {
			dim = len(seg.Samples[0].State)
		}
		_, err = tx.Exec(
			`INSERT INTO run_segments (segment_id, run_id, seq, t0, t1, model_json, state_dim, samples)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, id, seq, seg.T0, seg.T1, string(specJSON), dim,
			encodeSamples(seg.Samples, dim),
		)
		if err != nil {
			return "", fmt.Errorf("insert segment %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// #endregion save

// #region load

// GetRun retrieves a run summary by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var rec RunRecord
	var createdStr string
	var reason sql.NullString

	err := s.db.QueryRow(
		`SELECT run_id, created_at, duration, seed, num_objects, outcome, final_time, cuts, reason
		 FROM runs WHERE run_id = ?`, id,
	).Scan(&rec.RunID, &createdStr, &rec.Duration, &rec.Seed, &rec.NumObjects,
		&rec.Outcome, &rec.FinalTime, &rec.Cuts, &reason)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if reason.Valid {
		rec.Reason = reason.String
	}
	return rec, nil
}

// ListRuns returns the most recent run summaries.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, created_at, duration, seed, num_objects, outcome, final_time, cuts, reason
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdStr string
		var reason sql.NullString
		if err := rows.Scan(&rec.RunID, &createdStr, &rec.Duration, &rec.Seed,
			&rec.NumObjects, &rec.Outcome, &rec.FinalTime, &rec.Cuts, &reason); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if reason.Valid {
			rec.Reason = reason.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadSegments rebuilds a run's replay segments, models included, in
// recorded order.
func (s *Store) LoadSegments(runID string) ([]replay.Segment, error) {
	rows, err := s.db.Query(
		`SELECT segment_id, t0, t1, model_json, state_dim, samples
		 FROM run_segments WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load segments %s: %w", runID, err)
	}
	defer rows.Close()

	var segs []replay.Segment
	for rows.Next() {
		var seg replay.Segment
		var specJSON string
		var dim int
		var blob []byte
		if err := rows.Scan(&seg.ID, &seg.T0, &seg.T1, &specJSON, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		var spec model.Spec
		if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
			return nil, fmt.Errorf("unmarshal model: %w", err)
		}
		m, err := model.FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("rebuild model: %w", err)
		}
		seg.Model = m
		seg.Samples, err = decodeSamples(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("decode samples: %w", err)
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// #endregion load

// #region sample-encoding

// Samples are packed as rows of (1+dim) little-endian float64 values:
// time followed by the state vector.
func encodeSamples(samples []sim.Sample, dim int) []byte {
	row := (1 + dim) * 8
	buf := make([]byte, len(samples)*row)
	for i, s := range samples {
		off := i * row
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(s.Time))
		for j, v := range s.State {
			binary.LittleEndian.PutUint64(buf[off+(1+j)*8:], math.Float64bits(v))
		}
	}
	return buf
}

func decodeSamples(b []byte, dim int) ([]sim.Sample, error) {
	if len(b) == 0 {
		return nil, nil
	}
	row := (1 + dim) * 8
	if len(b)%row != 0 {
		return nil, fmt.Errorf("sample blob length %d not a multiple of row size %d", len(b), row)
	}
	n := len(b) / row
	samples := make([]sim.Sample, n)
	for i := 0; i < n; i++ {
		off := i * row
		samples[i].Time = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
		state := make(model.StateVector, dim)
		for j := 0; j < dim; j++ {
			state[j] = math.Float64frombits(binary.LittleEndian.Uint64(b[off+(1+j)*8:]))
		}
		samples[i].State = state
	}
	return samples, nil
}

// #endregion sample-encoding
