package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/cuttlefree/cuttle-server-go/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the authoritative command interface over a room store. Every move is
// read, validated and applied by the rulebook against a fresh snapshot and written
// back as one batch; moves on contended fields go through the store's atomic update.
type Engine struct {
	store    store.RoomStore
	rulebook *rules.Rulebook
	events   *rules.EventBus
	replays  *ReplayRecorder
	logger   *zap.Logger
	handles  []int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRulebook overrides the standard hand sizes.
func WithRulebook(rb *rules.Rulebook) Option {
	return func(e *Engine) { e.rulebook = rb }
}

// WithReplays records every committed snapshot and saves finished games. The
// recorder is driven by the engine's event bus.
func WithReplays(rr *ReplayRecorder) Option {
	return func(e *Engine) { e.replays = rr }
}

// WithRand makes shuffles reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// NewEngine creates an engine on top of st.
func NewEngine(st store.RoomStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		rulebook: rules.NewRulebook(),
		events:   rules.NewEventBus(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handles = append(e.handles, e.events.Subscribe(e.logEvent))
	if e.replays != nil {
		e.handles = append(e.handles,
			e.events.SubscribeTyped(rules.EventRoomCreated, e.startReplay),
			e.events.SubscribeTyped(rules.EventRestarted, e.restartReplay),
			e.events.SubscribeTyped(rules.EventCommitted, e.recordCommit),
		)
	}
	return e
}

// Close detaches the engine's listeners from its event bus. Moves submitted
// afterwards are neither logged as events nor recorded.
func (e *Engine) Close() {
	for _, handle := range e.handles {
		e.events.Unsubscribe(handle)
	}
	e.handles = nil
}

// Events returns the bus committed moves are published on.
func (e *Engine) Events() *rules.EventBus {
	return e.events
}

// Rulebook returns the rulebook moves are checked against.
func (e *Engine) Rulebook() *rules.Rulebook {
	return e.rulebook
}

func (e *Engine) newDeck() []cards.Card {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return cards.NewShuffledDeck(e.rng)
}

// JoinOutcome reports where a player ended up.
type JoinOutcome struct {
	Room     *match.Room
	Seat     match.PlayerID
	Created  bool
	Rejoined bool
}

// JoinRoom seats name in roomID, creating the room if needed. An empty roomID
// creates a room under a fresh id.
func (e *Engine) JoinRoom(ctx context.Context, roomID, name string) (*JoinOutcome, error) {
	if roomID == "" {
		roomID = uuid.NewString()
	}
	deck := e.newDeck()

	var joined *rules.JoinResult
	room, err := e.store.AtomicUpdate(ctx, roomID, func(current *match.Room) (*match.Room, error) {
		res, err := e.rulebook.Join(current, roomID, name, deck)
		if err != nil {
			return nil, err
		}
		joined = res
		if res.Rejoined {
			// nothing to write
			return nil, nil
		}
		return res.Room, nil
	})
	switch {
	case errors.Is(err, store.ErrAborted) && joined != nil && joined.Rejoined:
		room = joined.Room
	case err != nil:
		return nil, e.failed(roomID, "join", err)
	}

	e.publish(joined.Events)
	if !joined.Rejoined {
		e.committed(room, fmt.Sprintf("join %s", name), "")
	}

	if e.logger != nil {
		e.logger.Info("player joined room",
			zap.String("room_id", roomID),
			zap.String("player", name),
			zap.String("seat", string(joined.Seat)),
			zap.Bool("created", joined.Created),
			zap.Bool("rejoined", joined.Rejoined),
		)
	}
	return &JoinOutcome{
		Room:     room,
		Seat:     joined.Seat,
		Created:  joined.Created,
		Rejoined: joined.Rejoined,
	}, nil
}

// Submit validates and commits one move.
func (e *Engine) Submit(ctx context.Context, roomID string, cmd match.Command) (*rules.Result, error) {
	var (
		result *rules.Result
		err    error
	)
	if cmd.Kind.Contended() {
		_, err = e.store.AtomicUpdate(ctx, roomID, func(current *match.Room) (*match.Room, error) {
			if current == nil {
				return nil, fmt.Errorf("%w: %s", store.ErrRoomNotFound, roomID)
			}
			res, err := e.rulebook.Apply(current, cmd)
			if err != nil {
				return nil, err
			}
			result = res
			return res.Room, nil
		})
	} else {
		result, err = e.applyAndWrite(ctx, roomID, cmd)
	}
	if err != nil {
		return nil, e.failed(roomID, string(cmd.Kind), err)
	}

	e.publish(result.Events)
	e.committed(result.Room, cmd.String(), result.Winner)

	if e.logger != nil {
		e.logger.Debug("move committed",
			zap.String("room_id", roomID),
			zap.String("move", string(cmd.Kind)),
			zap.String("player", string(cmd.Player)),
			zap.String("status", result.Room.Status.String()),
			zap.String("turn", string(result.Room.Turn)),
		)
	}
	return result, nil
}

// applyAndWrite validates cmd against a snapshot read just before the write and
// sends only the changed field groups.
func (e *Engine) applyAndWrite(ctx context.Context, roomID string, cmd match.Command) (*rules.Result, error) {
	room, err := e.store.ReadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	res, err := e.rulebook.Apply(room, cmd)
	if err != nil {
		return nil, err
	}
	if err := e.store.WriteFields(ctx, roomID, match.Diff(room, res.Room)); err != nil {
		return nil, err
	}
	return res, nil
}

// Restart deals a new game in roomID. Only a seated player may restart.
func (e *Engine) Restart(ctx context.Context, roomID string, player match.PlayerID) (*rules.Result, error) {
	deck := e.newDeck()

	var result *rules.Result
	_, err := e.store.AtomicUpdate(ctx, roomID, func(current *match.Room) (*match.Room, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", store.ErrRoomNotFound, roomID)
		}
		if current.Player(player) == nil {
			return nil, rules.Reject(rules.KindIllegalMove, "only a seated player can restart", "player", string(player))
		}
		res, err := e.rulebook.Restart(current, deck)
		if err != nil {
			return nil, err
		}
		result = res
		return res.Room, nil
	})
	if err != nil {
		return nil, e.failed(roomID, "restart", err)
	}

	e.publish(result.Events)
	e.committed(result.Room, "restart", "")

	if e.logger != nil {
		e.logger.Info("room restarted",
			zap.String("room_id", roomID),
			zap.String("player", string(player)),
		)
	}
	return result, nil
}

// Room returns the current room state.
func (e *Engine) Room(ctx context.Context, roomID string) (*match.Room, error) {
	return e.store.ReadRoom(ctx, roomID)
}

// View returns viewer's redacted snapshot of roomID.
func (e *Engine) View(ctx context.Context, roomID string, viewer match.PlayerID) (*match.View, error) {
	room, err := e.store.ReadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return ViewOf(room, viewer), nil
}

// Subscribe streams full snapshots of roomID after every commit.
func (e *Engine) Subscribe(ctx context.Context, roomID string) (<-chan *match.Room, func(), error) {
	return e.store.Subscribe(ctx, roomID)
}

// ViewOf builds viewer's view of room, including each seat's king count and goal.
func ViewOf(room *match.Room, viewer match.PlayerID) *match.View {
	v := match.ViewFor(room, viewer)
	for _, seat := range []*match.SeatView{v.You, v.Opponent} {
		if seat == nil {
			continue
		}
		stats := rules.TableStats(seat.Table)
		seat.Kings = stats.Kings
		seat.Goal = stats.Goal()
	}
	return v
}

// failed logs a refused operation and normalizes store conflicts into rejections.
func (e *Engine) failed(roomID, op string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		err = rules.Reject(rules.KindConflict, "room changed concurrently, try again", "room", roomID)
	}
	if e.logger == nil {
		return err
	}
	fields := []zap.Field{
		zap.String("room_id", roomID),
		zap.String("op", op),
		zap.Error(err),
	}
	switch rules.KindOf(err) {
	case rules.KindInvariant:
		e.logger.Warn("invariant violation", fields...)
	case rules.KindIllegalMove, rules.KindStaleTarget, rules.KindConflict:
		e.logger.Debug("move rejected", fields...)
	default:
		if errors.Is(err, store.ErrRoomNotFound) || errors.Is(err, context.Canceled) {
			e.logger.Debug("operation failed", fields...)
		} else {
			e.logger.Error("store operation failed", fields...)
		}
	}
	return err
}

func (e *Engine) publish(events []rules.Event) {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
	}
	e.events.PublishBatch(events)
}

// committed announces a write. The event's player is the winner when the write
// ended the game.
func (e *Engine) committed(room *match.Room, command string, winner match.PlayerID) {
	evt := rules.NewEvent(rules.EventCommitted, string(winner), "", "")
	evt.RoomID = room.ID
	evt.Room = room
	evt.Metadata = map[string]string{"command": command}
	e.publish([]rules.Event{evt})
}

func (e *Engine) startReplay(evt rules.Event) {
	e.replays.StartRecording(evt.RoomID)
}

func (e *Engine) restartReplay(evt rules.Event) {
	if e.replays.IsRecording(evt.RoomID) {
		// the previous game never reached game over
		e.replays.ClearReplay(evt.RoomID)
	}
	e.replays.StartRecording(evt.RoomID)
}

func (e *Engine) recordCommit(evt rules.Event) {
	replay, ok := e.replays.GetReplay(evt.RoomID)
	if !ok || evt.Room == nil {
		return
	}
	snapshot, err := NewRoomSnapshot(evt.Room, evt.Metadata["command"], replay.Size())
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to snapshot room", zap.String("room_id", evt.RoomID), zap.Error(err))
		}
		return
	}
	e.replays.RecordState(evt.RoomID, snapshot)

	if evt.PlayerID == "" {
		return
	}
	if _, err := e.replays.SaveReplay(evt.RoomID); err != nil && e.logger != nil {
		e.logger.Error("failed to save replay", zap.String("room_id", evt.RoomID), zap.Error(err))
	}
}

func (e *Engine) logEvent(evt rules.Event) {
	if e.logger == nil {
		return
	}
	e.logger.Debug("game event",
		zap.String("type", string(evt.Type)),
		zap.String("room_id", evt.RoomID),
		zap.String("player", evt.PlayerID),
		zap.String("card", evt.CardID),
		zap.String("target", evt.TargetID),
	)
}
