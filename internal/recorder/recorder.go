// Package recorder stores filtered tracker poses and transition events into a SQLite database.
package recorder

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/LdDl/vive-trackers-go/trackers"
)

const schema = `
	CREATE TABLE IF NOT EXISTS poses (
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		tick INTEGER NOT NULL,
		position_valid BOOLEAN NOT NULL,
		rotation_valid BOOLEAN NOT NULL,
		px DOUBLE, py DOUBLE, pz DOUBLE,
		qx DOUBLE, qy DOUBLE, qz DOUBLE, qw DOUBLE,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS poses_name_tick ON poses (name, tick);
	CREATE TABLE IF NOT EXISTS events (
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		value BOOLEAN NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// Recorder appends poses and events to a SQLite database
type Recorder struct {
	db *sql.DB
}

// PoseRow is a recorded pose
type PoseRow struct {
	SessionID     uuid.UUID
	Name          string
	Tick          int
	PositionValid bool
	RotationValid bool
	Pose          trackers.Pose
}

// EventRow is a recorded transition
type EventRow struct {
	SessionID uuid.UUID
	Name      string
	Tick      int
	Kind      string
	Value     bool
}

// Open opens (or creates) the database at path and creates missing tables
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open record database '%s'", path)
	}
	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't create record tables")
	}
	return &Recorder{db: db}, nil
}

// Close closes the database
func (recorder *Recorder) Close() error {
	return recorder.db.Close()
}

// RecordPose appends the current pose of every tracker at tick in a single transaction
func (recorder *Recorder) RecordPose(tick int, trackerList ...*trackers.CalibratedTracker) error {
	if len(trackerList) == 0 {
		return nil
	}
	tx, err := recorder.db.Begin()
	if err != nil {
		return errors.Wrap(err, "Can't begin pose transaction")
	}
	stmt, err := tx.Prepare(`INSERT INTO poses (session_id, name, tick, position_valid, rotation_valid, px, py, pz, qx, qy, qz, qw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "Can't prepare pose insert")
	}
	defer stmt.Close()
	for _, tracker := range trackerList {
		pose := tracker.GetPose()
		_, err = stmt.Exec(
			tracker.GetID().String(), tracker.GetName(), tick,
			tracker.IsPositionValid(), tracker.IsRotationValid(),
			pose.Position.X, pose.Position.Y, pose.Position.Z,
			pose.Rotation.X, pose.Rotation.Y, pose.Rotation.Z, pose.Rotation.W,
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "Can't record pose of tracker '%s'", tracker.GetName())
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit poses")
}

// RecordEvents appends the transitions emitted at tick
func (recorder *Recorder) RecordEvents(tick int, events []trackers.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := recorder.db.Begin()
	if err != nil {
		return errors.Wrap(err, "Can't begin event transaction")
	}
	for _, event := range events {
		_, err = tx.Exec("INSERT INTO events (session_id, name, tick, kind, value) VALUES (?, ?, ?, ?, ?)",
			event.SessionID.String(), event.Tracker.Name, tick, event.Kind.String(), event.Value)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "Can't record %s event of tracker '%s'", event.Kind, event.Tracker.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit events")
}

// Poses returns the recorded poses of the named tracker ordered by tick
func (recorder *Recorder) Poses(name string) ([]PoseRow, error) {
	rows, err := recorder.db.Query(`SELECT session_id, name, tick, position_valid, rotation_valid, px, py, pz, qx, qy, qz, qw
		FROM poses WHERE name = ? ORDER BY tick, rowid`, name)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query poses")
	}
	defer rows.Close()

	var poses []PoseRow
	for rows.Next() {
		var row PoseRow
		var sessionID string
		err = rows.Scan(&sessionID, &row.Name, &row.Tick, &row.PositionValid, &row.RotationValid,
			&row.Pose.Position.X, &row.Pose.Position.Y, &row.Pose.Position.Z,
			&row.Pose.Rotation.X, &row.Pose.Rotation.Y, &row.Pose.Rotation.Z, &row.Pose.Rotation.W,
		)
		if err != nil {
			return nil, errors.Wrap(err, "Can't scan pose")
		}
		if row.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, errors.Wrapf(err, "Bad session id '%s'", sessionID)
		}
		poses = append(poses, row)
	}
	return poses, errors.Wrap(rows.Err(), "Can't iterate poses")
}

// Events returns the recorded transitions of the named tracker ordered by tick
func (recorder *Recorder) Events(name string) ([]EventRow, error) {
	rows, err := recorder.db.Query(`SELECT session_id, name, tick, kind, value
		FROM events WHERE name = ? ORDER BY tick, rowid`, name)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query events")
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var row EventRow
		var sessionID string
		if err = rows.Scan(&sessionID, &row.Name, &row.Tick, &row.Kind, &row.Value); err != nil {
			return nil, errors.Wrap(err, "Can't scan event")
		}
		if row.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, errors.Wrapf(err, "Bad session id '%s'", sessionID)
		}
		events = append(events, row)
	}
	return events, errors.Wrap(rows.Err(), "Can't iterate events")
}
