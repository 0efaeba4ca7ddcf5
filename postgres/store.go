// Package postgres provides eventlog.Log and staterecord.Store
// implementations targeted to PostgreSQL databases, using the pgx driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-retrace/go-retrace/event"
	"github.com/get-retrace/go-retrace/eventlog"
	"github.com/get-retrace/go-retrace/logger"
	"github.com/get-retrace/go-retrace/serde"
	"github.com/get-retrace/go-retrace/version"
)

// Record kind discriminators used in the retrace_records table.
const (
	kindEvent    = 0
	kindSnapshot = 1
)

// Interface implementation assertion.
var _ eventlog.Log[eventlog.StringID] = new(Store[eventlog.StringID])

// Store is an eventlog.Log implementation backed by the "retrace_records"
// PostgreSQL table.
//
// Records are keyed by a BIGSERIAL global sequence, which doubles as the
// deterministic insertion-order tie-break for records sharing both version
// number and timestamp.
type Store[I eventlog.ID] struct {
	pool     *pgxpool.Pool
	ids      serde.Serde[I, string]
	messages *serde.MessageRegistry
	log      logger.Logger
	closed   atomic.Bool
}

// StoreOption configures a Store instance.
type StoreOption func(*storeConfig)

type storeConfig struct {
	logger logger.Logger
}

// WithLogger supplies the structured logger used to report maintenance
// operations, such as truncations.
func WithLogger(l logger.Logger) StoreOption {
	return func(cfg *storeConfig) { cfg.logger = l }
}

// NewStore creates a new Store instance using the provided connection
// pool, Aggregate id serde and message registry.
func NewStore[I eventlog.ID](
	pool *pgxpool.Pool,
	ids serde.Serde[I, string],
	messages *serde.MessageRegistry,
	options ...StoreOption,
) *Store[I] {
	cfg := new(storeConfig)
	for _, option := range options {
		option(cfg)
	}

	return &Store[I]{
		pool:     pool,
		ids:      ids,
		messages: messages,
		log:      cfg.logger,
	}
}

func (s *Store[I]) checkOpen() error {
	if s.closed.Load() {
		return eventlog.ErrClosed
	}

	return nil
}

func (s *Store[I]) appendRecord(
	ctx context.Context,
	tx pgx.Tx,
	id string,
	kind int16,
	v version.Version,
	name string,
	payload []byte,
) error {
	_, err := tx.Exec(
		ctx,
		`INSERT INTO retrace_records (aggregate_id, kind, version, recorded_at, message_name, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, kind, int64(v.Number), v.Timestamp, name, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to append record, %w", err)
	}

	return nil
}

func (s *Store[I]) appendEvent(ctx context.Context, tx pgx.Tx, id string, evt event.Event) error {
	name, payload, err := s.messages.Serialize(evt.Message)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize event, %w", err)
	}

	return s.appendRecord(ctx, tx, id, kindEvent, evt.Version, name, payload)
}

func (s *Store[I]) appendSnapshot(ctx context.Context, tx pgx.Tx, id string, snapshot event.Snapshot) error {
	name, payload, err := s.messages.Serialize(snapshot.State)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize snapshot state, %w", err)
	}

	return s.appendRecord(ctx, tx, id, kindSnapshot, snapshot.Version, name, payload)
}

func (s *Store[I]) withTx(ctx context.Context, op func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to open database transaction, %w", err)
	}

	defer func() {
		// NOTE: should not have effect if the transaction has been committed.
		_ = tx.Rollback(ctx)
	}()

	if err := op(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.Store: failed to commit transaction, %w", err)
	}

	return nil
}

// Write implements the eventlog.Appender interface.
func (s *Store[I]) Write(ctx context.Context, id I, history event.History) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if len(history.Events) == 0 {
		return fmt.Errorf("postgres.Store: failed to write history for '%s', %w", id, eventlog.ErrEmptyHistory)
	}

	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize aggregate id, %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, evt := range history.Events {
			if err := s.appendEvent(ctx, tx, aggregateID, evt.StripMetadata()); err != nil {
				return err
			}
		}

		if history.Snapshot != nil {
			return s.appendSnapshot(ctx, tx, aggregateID, *history.Snapshot)
		}

		return nil
	})
}

// WriteEvent implements the eventlog.Appender interface.
func (s *Store[I]) WriteEvent(ctx context.Context, id I, evt event.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize aggregate id, %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.appendEvent(ctx, tx, aggregateID, evt.StripMetadata())
	})
}

// WriteSnapshot implements the eventlog.Appender interface.
func (s *Store[I]) WriteSnapshot(ctx context.Context, id I, snapshot event.Snapshot) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize aggregate id, %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.appendSnapshot(ctx, tx, aggregateID, snapshot)
	})
}

func (s *Store[I]) scanRecord(rows pgx.Rows) (eventlog.Record, error) {
	var (
		kind        int16
		number      int64
		recordedAt  time.Time
		messageName string
		payload     []byte
	)

	if err := rows.Scan(&kind, &number, &recordedAt, &messageName, &payload); err != nil {
		return nil, fmt.Errorf("postgres.Store: failed to scan record row, %w", err)
	}

	msg, err := s.messages.Deserialize(messageName, payload)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store: failed to deserialize record payload, %w", err)
	}

	v := version.Version{
		Number:    uint64(number),
		Timestamp: recordedAt,
	}

	if kind == kindSnapshot {
		return eventlog.SnapshotRecord{
			Snapshot: event.Snapshot{Version: v, State: msg},
		}, nil
	}

	return eventlog.EventRecord{
		Event: event.Event{Version: v, Message: msg},
	}, nil
}

// Read implements the eventlog.Reader interface.
func (s *Store[I]) Read(ctx context.Context, id I) (event.History, error) {
	return s.ReadBatch(ctx, id, eventlog.DefaultSnapshotTrigger)
}

// ReadBatch implements the eventlog.Reader interface.
func (s *Store[I]) ReadBatch(ctx context.Context, id I, batchSize int) (event.History, error) {
	if err := s.checkOpen(); err != nil {
		return event.History{}, err
	}

	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return event.History{}, fmt.Errorf("postgres.Store: failed to serialize aggregate id, %w", err)
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT kind, version, recorded_at, message_name, payload
		FROM retrace_records
		WHERE aggregate_id = $1
		ORDER BY version DESC, recorded_at DESC, global_seq DESC
		LIMIT $2`,
		aggregateID, batchSize,
	)
	if err != nil {
		return event.History{}, fmt.Errorf("postgres.Store: failed to query records, %w", err)
	}

	defer rows.Close()

	var (
		history event.History
		found   bool
	)

	for rows.Next() {
		found = true

		record, err := s.scanRecord(rows)
		if err != nil {
			return event.History{}, err
		}

		if snapshot, ok := record.(eventlog.SnapshotRecord); ok {
			history.Snapshot = &snapshot.Snapshot
			break
		}

		history.Events = append(history.Events, record.(eventlog.EventRecord).Event)
	}

	if err := rows.Err(); err != nil {
		return event.History{}, fmt.Errorf("postgres.Store: failed to read record rows, %w", err)
	}

	if !found {
		return event.History{}, fmt.Errorf("postgres.Store: failed to read history for '%s', %w", id, eventlog.ErrNotFound)
	}

	// Events were collected newest-first; the History contract
	// is chronological.
	for i, j := 0, len(history.Events)-1; i < j; i, j = i+1, j-1 {
		history.Events[i], history.Events[j] = history.Events[j], history.Events[i]
	}

	return history, nil
}

// HistoryBackward implements the eventlog.Reader interface.
func (s *Store[I]) HistoryBackward(
	ctx context.Context,
	records eventlog.RecordStream,
	id I,
	batchSize int,
	startingFrom *version.Version,
) error {
	defer close(records)

	if err := s.checkOpen(); err != nil {
		return err
	}

	aggregateID, err := s.ids.Serialize(id)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to serialize aggregate id, %w", err)
	}

	query := `SELECT kind, version, recorded_at, message_name, payload
		FROM retrace_records
		WHERE aggregate_id = $1
		ORDER BY version DESC, recorded_at DESC, global_seq DESC
		LIMIT $2`
	args := []any{aggregateID, batchSize}

	if startingFrom != nil {
		query = `SELECT kind, version, recorded_at, message_name, payload
			FROM retrace_records
			WHERE aggregate_id = $1
			AND (version, recorded_at) < ($3, $4)
			ORDER BY version DESC, recorded_at DESC, global_seq DESC
			LIMIT $2`
		args = append(args, int64(startingFrom.Number), startingFrom.Timestamp)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres.Store: failed to query records, %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return err
		}

		select {
		case records <- record:
		case <-ctx.Done():
			return fmt.Errorf("postgres.Store: context error, %w", ctx.Err())
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres.Store: failed to read record rows, %w", err)
	}

	return nil
}

// DistinctIDs implements the eventlog.Reader interface.
func (s *Store[I]) DistinctIDs(ctx context.Context) ([]I, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(
		ctx,
		"SELECT DISTINCT aggregate_id FROM retrace_records ORDER BY aggregate_id",
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store: failed to query distinct ids, %w", err)
	}

	defer rows.Close()

	var ids []I

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres.Store: failed to scan aggregate id, %w", err)
		}

		id, err := s.ids.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres.Store: failed to deserialize aggregate id, %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.Store: failed to read aggregate id rows, %w", err)
	}

	return ids, nil
}

// TruncateOlderThan implements the eventlog.Truncator interface.
func (s *Store[I]) TruncateOlderThan(ctx context.Context, snapshotIndex int) error {
	return s.truncate(ctx, snapshotIndex, nil)
}

// TruncateOlderThanBefore implements the eventlog.Truncator interface.
func (s *Store[I]) TruncateOlderThanBefore(ctx context.Context, snapshotIndex int, cutoff time.Time) error {
	return s.truncate(ctx, snapshotIndex, &cutoff)
}

func (s *Store[I]) truncate(ctx context.Context, snapshotIndex int, cutoff *time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if snapshotIndex < 0 {
		return fmt.Errorf("postgres.Store: failed to truncate, %w", eventlog.ErrNegativeSnapshotIndex)
	}

	removed := 0

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, "SELECT DISTINCT aggregate_id FROM retrace_records")
		if err != nil {
			return fmt.Errorf("postgres.Store: failed to query distinct ids, %w", err)
		}

		var ids []string

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("postgres.Store: failed to scan aggregate id, %w", err)
			}

			ids = append(ids, id)
		}

		rows.Close()

		if err := rows.Err(); err != nil {
			return fmt.Errorf("postgres.Store: failed to read aggregate id rows, %w", err)
		}

		for _, id := range ids {
			dropped, err := s.truncateAggregate(ctx, tx, id, snapshotIndex, cutoff)
			if err != nil {
				return err
			}

			removed += dropped
		}

		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(s.log, "postgres: truncated records",
		logger.With("snapshot_index", snapshotIndex),
		logger.With("removed_records", removed),
	)

	return nil
}

// truncateAggregate removes the records of one Aggregate strictly older
// than its snapshotIndex-th latest snapshot, honoring the optional cutoff.
func (s *Store[I]) truncateAggregate(
	ctx context.Context,
	tx pgx.Tx,
	id string,
	snapshotIndex int,
	cutoff *time.Time,
) (int, error) {
	var (
		number     int64
		recordedAt time.Time
		globalSeq  int64
	)

	err := tx.QueryRow(
		ctx,
		`SELECT version, recorded_at, global_seq
		FROM retrace_records
		WHERE aggregate_id = $1 AND kind = $2
		ORDER BY version DESC, recorded_at DESC, global_seq DESC
		OFFSET $3 LIMIT 1`,
		id, kindSnapshot, snapshotIndex,
	).Scan(&number, &recordedAt, &globalSeq)

	if errors.Is(err, pgx.ErrNoRows) {
		// Fewer than snapshotIndex+1 snapshots: leave this Aggregate untouched.
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("postgres.Store: failed to locate truncation boundary, %w", err)
	}

	query := `DELETE FROM retrace_records
		WHERE aggregate_id = $1
		AND (version, recorded_at, global_seq) < ($2, $3, $4)`
	args := []any{id, number, recordedAt, globalSeq}

	if cutoff != nil {
		query += " AND recorded_at < $5"
		args = append(args, *cutoff)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres.Store: failed to delete records, %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Close marks the store as closed and releases the underlying connection
// pool: every subsequent operation fails fast with eventlog.ErrClosed.
func (s *Store[I]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.pool.Close()

	return nil
}
