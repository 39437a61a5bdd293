package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayFormatVersion = 1

// Replay is one game's committed snapshots in order, with a cursor for playback.
type Replay struct {
	RoomID string
	States []*RoomSnapshot

	mu     sync.RWMutex
	cursor int
}

// NewReplay creates an empty replay.
func NewReplay(roomID string) *Replay {
	return &Replay{RoomID: roomID}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snapshot *RoomSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, snapshot)
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

func (r *Replay) stateAt(i int) *RoomSnapshot {
	if i < 0 || i >= len(r.States) {
		return nil
	}
	return r.States[i]
}

// Next returns the snapshot under the cursor and moves past it, or nil once the
// replay is exhausted.
func (r *Replay) Next() *RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.stateAt(r.cursor)
	if state != nil {
		r.cursor++
	}
	return state
}

// Skip moves the cursor by count, stopping at the first and last snapshot, and
// returns the snapshot it lands on. The cursor stays on that snapshot, so a
// following Next returns it again.
func (r *Replay) Skip(count int) *RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursor = max(0, min(r.cursor+count, len(r.States)-1))
	return r.stateAt(r.cursor)
}

// header leads every replay file.
type header struct {
	RoomID  string
	SavedAt time.Time
	Version int
	States  int
}

func replayPath(dir, name string) string {
	return filepath.Join(dir, name+".replay")
}

func (r *Replay) encode(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	h := header{RoomID: r.RoomID, SavedAt: time.Now(), Version: replayFormatVersion, States: len(r.States)}
	if err := enc.Encode(&h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for i, state := range r.States {
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("encode state %d: %w", i, err)
		}
	}
	return zw.Close()
}

func decodeReplay(rd io.Reader) (*Replay, error) {
	zr, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	dec := gob.NewDecoder(zr)

	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != replayFormatVersion {
		return nil, fmt.Errorf("unsupported replay version %d", h.Version)
	}

	replay := NewReplay(h.RoomID)
	for i := 0; i < h.States; i++ {
		state := new(RoomSnapshot)
		if err := dec.Decode(state); err != nil {
			return nil, fmt.Errorf("decode state %d: %w", i, err)
		}
		if state.Room != nil {
			state.Room.Normalize()
		}
		ok, err := state.VerifyChecksum()
		switch {
		case err != nil:
			return nil, fmt.Errorf("state %d: %w", i, err)
		case !ok:
			return nil, fmt.Errorf("state %d: checksum mismatch", i)
		}
		replay.States = append(replay.States, state)
	}
	return replay, nil
}

// SaveToFile writes the replay to dir/name.replay as a gzipped gob stream,
// creating dir if needed.
func (r *Replay) SaveToFile(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create replay directory: %w", err)
	}
	f, err := os.Create(replayPath(dir, name))
	if err != nil {
		return fmt.Errorf("create replay file: %w", err)
	}
	if err := r.encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadReplayFromFile reads dir/name.replay and verifies every snapshot's checksum.
func LoadReplayFromFile(dir, name string) (*Replay, error) {
	f, err := os.Open(replayPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return decodeReplay(f)
}

// ReplayRecorder holds the replay of the game currently running in each room and
// writes it out when the game ends.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu     sync.RWMutex
	active map[string]*Replay
	saved  map[string]int
}

// NewReplayRecorder creates a recorder that saves into dir.
func NewReplayRecorder(logger *zap.Logger, dir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger: logger,
		dir:    dir,
		active: make(map[string]*Replay),
		saved:  make(map[string]int),
	}
}

// StartRecording begins an empty replay for roomID.
func (rr *ReplayRecorder) StartRecording(roomID string) {
	rr.mu.Lock()
	rr.active[roomID] = NewReplay(roomID)
	rr.mu.Unlock()

	if rr.logger != nil {
		rr.logger.Debug("recording room", zap.String("room_id", roomID))
	}
}

// RecordState appends snapshot to roomID's replay. It does nothing when roomID is
// not being recorded.
func (rr *ReplayRecorder) RecordState(roomID string, snapshot *RoomSnapshot) {
	replay, ok := rr.GetReplay(roomID)
	if !ok {
		return
	}
	replay.RecordState(snapshot)
}

// IsRecording reports whether roomID has a replay in progress.
func (rr *ReplayRecorder) IsRecording(roomID string) bool {
	_, ok := rr.GetReplay(roomID)
	return ok
}

// GetReplay returns the replay in progress for roomID.
func (rr *ReplayRecorder) GetReplay(roomID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.active[roomID]
	return replay, ok
}

// ClearReplay drops roomID's replay without saving it.
func (rr *ReplayRecorder) ClearReplay(roomID string) {
	rr.mu.Lock()
	replay, ok := rr.active[roomID]
	delete(rr.active, roomID)
	rr.mu.Unlock()

	if ok && rr.logger != nil {
		rr.logger.Info("discarded unfinished replay",
			zap.String("room_id", roomID),
			zap.Int("states", replay.Size()),
		)
	}
}

// SaveReplay ends roomID's recording and writes it to disk as <roomID>-<n>, where
// n counts the games saved for that room. It returns the name.
func (rr *ReplayRecorder) SaveReplay(roomID string) (string, error) {
	rr.mu.Lock()
	replay, ok := rr.active[roomID]
	if !ok {
		rr.mu.Unlock()
		return "", fmt.Errorf("room %s is not being recorded", roomID)
	}
	delete(rr.active, roomID)
	rr.saved[roomID]++
	name := fmt.Sprintf("%s-%d", roomID, rr.saved[roomID])
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.dir, name); err != nil {
		return "", fmt.Errorf("save replay %s: %w", name, err)
	}
	if rr.logger != nil {
		rr.logger.Info("replay saved",
			zap.String("room_id", roomID),
			zap.String("name", name),
			zap.Int("states", replay.Size()),
		)
	}
	return name, nil
}
