package blackbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flightcore/internal/pid"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Store persists recorded sessions in sqlite.
type Store struct {
	db   *sql.DB
	path string
}

// Session describes one recorded run.
type Session struct {
	ID          string      `json:"id"`
	Scenario    string      `json:"scenario"`
	Profile     pid.Profile `json:"profile"`
	LooptimeUs  uint32      `json:"looptime_us"`
	CreatedAt   time.Time   `json:"created_at"`
	Notes       string      `json:"notes,omitempty"`
	FrameCount  int64       `json:"frame_count"`
	CrashEvents int         `json:"crash_events"`
}

// SessionInfo is the caller-supplied part of a new Session.
type SessionInfo struct {
	Scenario   string
	Profile    pid.Profile
	LooptimeUs uint32
	Notes      string
}

// Open opens (creating if needed) the sqlite database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s := &Store{db: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Diagf("opened %s", path)
	return s, nil
}

// dsn adds the per-connection pragmas the store relies on.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB exposes the underlying handle for admin tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new session with a fresh id.
func (s *Store) CreateSession(ctx context.Context, info SessionInfo) (*Session, error) {
	profileJSON, err := json.Marshal(info.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	sess := &Session{
		ID:         uuid.NewString(),
		Scenario:   info.Scenario,
		Profile:    info.Profile,
		LooptimeUs: info.LooptimeUs,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Notes:      info.Notes,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, scenario, profile_json, looptime_us, created_at_ms, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Scenario, string(profileJSON), sess.LooptimeUs, sess.CreatedAt.UnixMilli(), sess.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

const frameColumns = `iteration, time_us,
	setpoint_roll, setpoint_pitch, setpoint_yaw,
	gyro_roll, gyro_pitch, gyro_yaw,
	p_roll, p_pitch, p_yaw,
	i_roll, i_pitch, i_yaw,
	d_roll, d_pitch, d_yaw,
	sum_roll, sum_pitch, sum_yaw,
	attitude_roll, attitude_pitch,
	flight_mode, armed, crash_recovery, motor_mix_range`

// AppendFrames writes frames to a session in one transaction.
func (s *Store) AppendFrames(ctx context.Context, sessionID string, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin frame batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO frames (session_id, `+frameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		_, err := stmt.ExecContext(ctx, sessionID, f.Iteration, f.TimeUs,
			f.Setpoint[0], f.Setpoint[1], f.Setpoint[2],
			f.Gyro[0], f.Gyro[1], f.Gyro[2],
			f.P[0], f.P[1], f.P[2],
			f.I[0], f.I[1], f.I[2],
			f.D[0], f.D[1], f.D[2],
			f.Sum[0], f.Sum[1], f.Sum[2],
			f.Attitude[0], f.Attitude[1],
			f.Mode, f.Armed, f.CrashRecovery, f.MotorMixRange)
		if err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Iteration, err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET frame_count = frame_count + ? WHERE session_id = ?`,
		len(frames), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update frame count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("append to %s: %w", sessionID, ErrSessionNotFound)
	}
	return tx.Commit()
}

// FinishSession records summary counters once a run ends.
func (s *Store) FinishSession(ctx context.Context, sessionID string, crashEvents int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET crash_events = ? WHERE session_id = ?`, crashEvents, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

const sessionColumns = `session_id, scenario, profile_json, looptime_us, created_at_ms, notes, frame_count, crash_events`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess        Session
		profileJSON string
		createdMs   int64
	)
	if err := row.Scan(&sess.ID, &sess.Scenario, &profileJSON, &sess.LooptimeUs, &createdMs,
		&sess.Notes, &sess.FrameCount, &sess.CrashEvents); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profileJSON), &sess.Profile); err != nil {
		return nil, fmt.Errorf("session %s: failed to decode profile: %w", sess.ID, err)
	}
	sess.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &sess, nil
}

// Sessions lists every session, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at_ms DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Session returns one session by id.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

// DeleteSession removes a session and its frames.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// FrameQuery selects a window of a session's frames. Every > 1 keeps one
// frame in Every by iteration; Limit 0 means no limit.
type FrameQuery struct {
	Offset int64
	Limit  int64
	Every  int64
}

// Frames returns a session's frames in iteration order.
func (s *Store) Frames(ctx context.Context, id string, q FrameQuery) ([]Frame, error) {
	every := q.Every
	if every < 1 {
		every = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+frameColumns+` FROM frames
		WHERE session_id = ? AND iteration % ? = 0
		ORDER BY iteration LIMIT ? OFFSET ?`, id, every, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.Iteration, &f.TimeUs,
			&f.Setpoint[0], &f.Setpoint[1], &f.Setpoint[2],
			&f.Gyro[0], &f.Gyro[1], &f.Gyro[2],
			&f.P[0], &f.P[1], &f.P[2],
			&f.I[0], &f.I[1], &f.I[2],
			&f.D[0], &f.D[1], &f.D[2],
			&f.Sum[0], &f.Sum[1], &f.Sum[2],
			&f.Attitude[0], &f.Attitude[1],
			&f.Mode, &f.Armed, &f.CrashRecovery, &f.MotorMixRange); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
