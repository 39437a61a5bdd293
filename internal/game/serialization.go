package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
)

// checksumVersion changes whenever the canonical representation changes.
const checksumVersion = 1

// RoomChecksum is a deterministic digest of a room state. Two processes holding the
// same room compute the same hash, so it guards replays and pushed snapshots
// against divergence.
type RoomChecksum struct {
	Hash    string
	Version int
}

// RoomSnapshot is one committed state of a room together with the move that
// produced it.
type RoomSnapshot struct {
	RoomID    string
	Sequence  int
	Command   string
	Room      *match.Room
	Checksum  string
	Timestamp time.Time
}

// NewRoomSnapshot captures a copy of room.
func NewRoomSnapshot(room *match.Room, command string, sequence int) (*RoomSnapshot, error) {
	sum, err := ComputeChecksum(room)
	if err != nil {
		return nil, err
	}
	return &RoomSnapshot{
		RoomID:    room.ID,
		Sequence:  sequence,
		Command:   command,
		Room:      room.Clone(),
		Checksum:  sum.Hash,
		Timestamp: time.Now(),
	}, nil
}

// ComputeChecksum hashes the canonical representation of room.
func ComputeChecksum(room *match.Room) (*RoomChecksum, error) {
	if room == nil {
		return nil, fmt.Errorf("cannot checksum a nil room")
	}
	hash := sha256.New()
	if _, err := hash.Write([]byte(canonicalRoom(room))); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &RoomChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: checksumVersion,
	}, nil
}

// canonicalRoom renders room as text. Hands and tables are already ordered by key,
// and deck/discard order is part of the game, so nothing needs sorting.
func canonicalRoom(room *match.Room) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "ROOM:%s|%s|%s|%s|%d\n",
		room.ID, room.Status, room.Turn, room.Winner, room.Keys.Next)

	for _, seat := range []match.PlayerID{match.Player1, match.Player2} {
		p := room.Player(seat)
		if p == nil {
			fmt.Fprintf(&buf, "SEAT:%s|empty\n", seat)
			continue
		}
		fmt.Fprintf(&buf, "SEAT:%s|%s|%d|%d\n", seat, p.Name, p.Score, p.Wins)
		p.Hand.Each(func(key board.Key, c cards.Card) bool {
			fmt.Fprintf(&buf, "  HAND:%s=%s\n", key, c.ID())
			return true
		})
		p.Table.Each(func(key board.Key, e board.Entry) bool {
			fmt.Fprintf(&buf, "  TABLE:%s=%s|%s|%s|%s\n", key, e.ID(), e.OriginalOwner, e.Owner, e.Stealing)
			return true
		})
	}

	fmt.Fprintf(&buf, "DECK:%s\n", cardIDs(room.Deck))
	fmt.Fprintf(&buf, "DISCARD:%s\n", cardIDs(room.DiscardPile))
	if pa := room.PendingAction; pa != nil {
		fmt.Fprintf(&buf, "PENDING:%s|%s|%s|%s|%d\n", pa.Type, pa.Source, pa.TargetID, pa.Victim, pa.DiscardCount)
	}
	return buf.String()
}

func cardIDs(cs []cards.Card) string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID()
	}
	return strings.Join(ids, ",")
}

// VerifyChecksum reports whether the snapshot's room still matches its stored checksum.
func (s *RoomSnapshot) VerifyChecksum() (bool, error) {
	computed, err := ComputeChecksum(s.Room)
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == s.Checksum, nil
}

// SerializeToBytes encodes the snapshot with gob.
func (s *RoomSnapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob-encoded snapshot.
func DeserializeFromBytes(data []byte) (*RoomSnapshot, error) {
	var snapshot RoomSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Room != nil {
		snapshot.Room.Normalize()
	}
	return &snapshot, nil
}

// ValidateSerializationRoundtrip checks that a snapshot survives encoding unchanged.
func ValidateSerializationRoundtrip(snapshot *RoomSnapshot) error {
	original, err := ComputeChecksum(snapshot.Room)
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := snapshot.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundTripped, err := ComputeChecksum(decoded.Room)
	if err != nil {
		return fmt.Errorf("failed to compute deserialized checksum: %w", err)
	}
	if original.Hash != roundTripped.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original.Hash, roundTripped.Hash)
	}
	return nil
}
