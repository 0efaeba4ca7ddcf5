package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/lifecycle"
	"github.com/get-retrace/go-retrace/serde"
	"github.com/get-retrace/go-retrace/staterecord"
	"github.com/get-retrace/go-retrace/version"
)

// StateStore is a staterecord.Store implementation backed by the
// "retrace_states" PostgreSQL table, holding one row per Aggregate with
// its latest materialized state, version and lifecycle flags.
type StateStore[I eventlog.ID, S interface{ Name() string }] struct {
	pool   *pgxpool.Pool
	ids    serde.Serde[I, string]
	states serde.Bytes[S]
}

// NewStateStore creates a new StateStore instance using the provided
// connection pool, Aggregate id serde and state serde.
func NewStateStore[I eventlog.ID, S interface{ Name() string }](
	pool *pgxpool.Pool,
	ids serde.Serde[I, string],
	states serde.Bytes[S],
) *StateStore[I, S] {
	return &StateStore[I, S]{
		pool:   pool,
		ids:    ids,
		states: states,
	}
}

// Write implements the staterecord.Store interface, upserting the row
// for the specified Aggregate.
func (s *StateStore[I, S]) Write(ctx context.Context, id I, record staterecord.Record[S]) error {
	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return fmt.Errorf("postgres.StateStore: failed to serialize aggregate id, %w", err)
	}

	state, err := s.states.Serialize(record.State)
	if err != nil {
		return fmt.Errorf("postgres.StateStore: failed to serialize state, %w", err)
	}

	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO retrace_states (aggregate_id, version, recorded_at, archived, deleted, state_name, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (aggregate_id) DO UPDATE SET
			version = excluded.version,
			recorded_at = excluded.recorded_at,
			archived = excluded.archived,
			deleted = excluded.deleted,
			state_name = excluded.state_name,
			state = excluded.state`,
		aggregateID,
		int64(record.Version.Number),
		record.Version.Timestamp,
		record.Flags.Archived,
		record.Flags.Deleted,
		record.State.Name(),
		state,
	)
	if err != nil {
		return fmt.Errorf("postgres.StateStore: failed to write record, %w", err)
	}

	return nil
}

func (s *StateStore[I, S]) scanRecord(row pgx.Row) (staterecord.Record[S], error) {
	var (
		number     int64
		recordedAt time.Time
		flags      lifecycle.Flags
		payload    []byte
	)

	if err := row.Scan(&number, &recordedAt, &flags.Archived, &flags.Deleted, &payload); err != nil {
		return staterecord.Record[S]{}, err
	}

	state, err := s.states.Deserialize(payload)
	if err != nil {
		return staterecord.Record[S]{}, fmt.Errorf("postgres.StateStore: failed to deserialize state, %w", err)
	}

	return staterecord.Record[S]{
		State: state,
		Version: version.Version{
			Number:    uint64(number),
			Timestamp: recordedAt,
		},
		Flags: flags,
	}, nil
}

// Read implements the staterecord.Store interface.
func (s *StateStore[I, S]) Read(ctx context.Context, id I) (staterecord.Record[S], error) {
	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return staterecord.Record[S]{}, fmt.Errorf("postgres.StateStore: failed to serialize aggregate id, %w", err)
	}

	row := s.pool.QueryRow(
		ctx,
		`SELECT version, recorded_at, archived, deleted, state
		FROM retrace_states
		WHERE aggregate_id = $1`,
		aggregateID,
	)

	record, err := s.scanRecord(row)

	if errors.Is(err, pgx.ErrNoRows) {
		return staterecord.Record[S]{}, fmt.Errorf("postgres.StateStore: failed to read record for '%s', %w", id, staterecord.ErrNotFound)
	}

	if err != nil {
		return staterecord.Record[S]{}, fmt.Errorf("postgres.StateStore: failed to read record, %w", err)
	}

	return record, nil
}

// Index implements the staterecord.Store interface.
func (s *StateStore[I, S]) Index(ctx context.Context) ([]I, error) {
	rows, err := s.pool.Query(
		ctx,
		"SELECT aggregate_id FROM retrace_states ORDER BY aggregate_id",
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.StateStore: failed to query record ids, %w", err)
	}

	defer rows.Close()

	var ids []I

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres.StateStore: failed to scan aggregate id, %w", err)
		}

		id, err := s.ids.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres.StateStore: failed to deserialize aggregate id, %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.StateStore: failed to read aggregate id rows, %w", err)
	}

	return ids, nil
}

// ReadAll implements the staterecord.Store interface.
func (s *StateStore[I, S]) ReadAll(ctx context.Context, query staterecord.Query) ([]staterecord.Record[S], error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT version, recorded_at, archived, deleted, state
		FROM retrace_states
		WHERE (archived = FALSE OR $1) AND (deleted = FALSE OR $2)
		ORDER BY aggregate_id`,
		query.IncludeArchived, query.IncludeDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.StateStore: failed to query records, %w", err)
	}

	defer rows.Close()

	var records []staterecord.Record[S]

	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres.StateStore: failed to read record, %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.StateStore: failed to read record rows, %w", err)
	}

	return records, nil
}
