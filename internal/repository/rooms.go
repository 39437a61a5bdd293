package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DefaultChannel is the NOTIFY channel room changes are announced on.
const DefaultChannel = "cuttle_rooms"

// RoomRepository is a store.RoomStore backed by the rooms table. Each room is one
// JSONB document; version guards optimistic updates and every commit is announced
// with NOTIFY so that all server processes can push snapshots to their clients.
type RoomRepository struct {
	db         *DB
	channel    string
	maxRetries int
	feed       *store.Feed
	logger     *zap.Logger
}

var _ store.RoomStore = (*RoomRepository)(nil)

// NewRoomRepository creates a room repository. An empty channel uses DefaultChannel.
func NewRoomRepository(db *DB, channel string, maxRetries int, logger *zap.Logger) *RoomRepository {
	if channel == "" {
		channel = DefaultChannel
	}
	if maxRetries <= 0 {
		maxRetries = store.DefaultMaxRetries
	}
	return &RoomRepository{
		db:         db,
		channel:    channel,
		maxRetries: maxRetries,
		feed:       store.NewFeed(logger),
		logger:     logger,
	}
}

func decodeRoom(data []byte) (*match.Room, error) {
	var room match.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	room.Normalize()
	return &room, nil
}

func (r *RoomRepository) load(ctx context.Context, id string) (*match.Room, int64, error) {
	var (
		data    []byte
		version int64
	)
	row := r.db.QueryRow(ctx, `SELECT state, version FROM rooms WHERE id = $1`, id)
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: %s", store.ErrRoomNotFound, id)
		}
		return nil, 0, fmt.Errorf("failed to read room %s: %w", id, err)
	}
	room, err := decodeRoom(data)
	if err != nil {
		return nil, 0, err
	}
	room.ID = id
	return room, version, nil
}

// ReadRoom loads the current room document.
func (r *RoomRepository) ReadRoom(ctx context.Context, id string) (*match.Room, error) {
	room, _, err := r.load(ctx, id)
	return room, err
}

// WriteFields merges the given top-level paths into the stored document.
func (r *RoomRepository) WriteFields(ctx context.Context, id string, fields match.Fields) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET state = state || $2::jsonb, version = version + 1, updated_at = now()
		WHERE id = $1
	`, id, patch)
	if err != nil {
		return fmt.Errorf("failed to write room %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrRoomNotFound, id)
	}
	if err := r.notify(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit room %s: %w", id, err)
	}

	if r.logger != nil {
		r.logger.Debug("room fields written",
			zap.String("room_id", id),
			zap.Strings("paths", fields.Paths()),
		)
	}
	return nil
}

// AtomicUpdate runs fn against the stored room and commits only if the version
// did not move in between.
func (r *RoomRepository) AtomicUpdate(ctx context.Context, id string, fn store.UpdateFunc) (*match.Room, error) {
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		current, version, err := r.load(ctx, id)
		if err != nil && !errors.Is(err, store.ErrRoomNotFound) {
			return nil, err
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, store.ErrAborted
		}
		next = next.Clone()
		next.ID = id

		committed, err := r.commit(ctx, id, next, current == nil, version)
		if err != nil {
			return nil, err
		}
		if committed {
			return next, nil
		}
		if r.logger != nil {
			r.logger.Debug("atomic update conflict, retrying",
				zap.String("room_id", id),
				zap.Int("attempt", attempt+1),
			)
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", store.ErrConflict, id, r.maxRetries+1)
}

func (r *RoomRepository) commit(ctx context.Context, id string, room *match.Room, create bool, version int64) (bool, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return false, fmt.Errorf("failed to encode room: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var sql string
	args := []any{id, data}
	if create {
		sql = `INSERT INTO rooms (id, state) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	} else {
		sql = `
			UPDATE rooms
			SET state = $2, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $3
		`
		args = append(args, version)
	}
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to commit room %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := r.notify(ctx, tx, id); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit room %s: %w", id, err)
	}
	return true, nil
}

func (r *RoomRepository) notify(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, r.channel, id); err != nil {
		return fmt.Errorf("failed to notify room %s: %w", id, err)
	}
	return nil
}

// Subscribe registers for snapshots of id. Snapshots only flow while Listen runs.
func (r *RoomRepository) Subscribe(ctx context.Context, id string) (<-chan *match.Room, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch, cancel := r.feed.Add(id)
	return ch, store.CancelOnDone(ctx, cancel), nil
}

// Listen holds a dedicated connection on the NOTIFY channel and forwards every
// changed room to local subscribers until ctx is done.
func (r *RoomRepository) Listen(ctx context.Context) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{r.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.channel, err)
	}
	if r.logger != nil {
		r.logger.Info("listening for room changes", zap.String("channel", r.channel))
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}
		if r.feed.Subscribers(n.Payload) == 0 {
			continue
		}
		room, err := r.ReadRoom(ctx, n.Payload)
		if err != nil {
			if r.logger != nil {
				r.logger.Error("failed to load notified room",
					zap.String("room_id", n.Payload),
					zap.Error(err),
				)
			}
			continue
		}
		r.feed.Publish(room)
	}
}

// Close ends every local subscription.
func (r *RoomRepository) Close() {
	r.feed.Close()
}
