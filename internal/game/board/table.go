package board

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
)

// Hand maps insertion-time keys to cards.
type Hand = Ordered[cards.Card]

// NewHand returns an empty hand.
func NewHand() *Hand {
	return NewOrdered[cards.Card]()
}

// Entry is a card on a table together with its ownership metadata.
type Entry struct {
	cards.Card
	// OriginalOwner is the player who first placed this point card.
	OriginalOwner PlayerID `json:"originalOwner,omitempty"`
	// Stealing is the key of the point card a Jack currently holds.
	Stealing Key `json:"stealing,omitempty"`
	// Owner is the player who played the Jack.
	Owner PlayerID `json:"owner,omitempty"`
}

// IsAttachedJack reports whether the entry is a Jack holding a point card.
func (e Entry) IsAttachedJack() bool {
	return e.Face == cards.FaceJack && e.Stealing != ""
}

// Table is one player's side of the board. Besides its entries it keeps an
// explicit steal graph: for every point card, the Jacks stacked on it in play order.
type Table struct {
	entries Ordered[Entry]
	chains  map[Key][]Key
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{chains: make(map[Key][]Key)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.entries.Len()
}

func (t *Table) Get(key Key) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	return t.entries.Get(key)
}

func (t *Table) Has(key Key) bool {
	_, ok := t.Get(key)
	return ok
}

// Keys returns entry keys in creation order.
func (t *Table) Keys() []Key {
	if t == nil {
		return nil
	}
	return t.entries.Keys()
}

// Entries returns the entries in creation order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	return t.entries.Values()
}

// Each iterates entries in creation order until fn returns false.
func (t *Table) Each(fn func(Key, Entry) bool) {
	if t == nil {
		return
	}
	t.entries.Each(fn)
}

// HasFace reports whether any card on the table has the given face.
func (t *Table) HasFace(face cards.Face) bool {
	found := false
	t.Each(func(_ Key, e Entry) bool {
		if e.Face == face {
			found = true
			return false
		}
		return true
	})
	return found
}

// Place puts a free-standing card on the table. Point cards record originalOwner.
func (t *Table) Place(key Key, card cards.Card, originalOwner PlayerID) {
	entry := Entry{Card: card}
	if card.Face.IsPoint() {
		entry.OriginalOwner = originalOwner
	}
	t.put(key, entry)
}

func (t *Table) put(key Key, entry Entry) {
	if t.chains == nil {
		t.chains = make(map[Key][]Key)
	}
	t.entries.Put(key, entry)
	if entry.IsAttachedJack() {
		t.chains[entry.Stealing] = insertKey(t.chains[entry.Stealing], key)
	}
}

// Attach stacks a Jack owned by owner on the point card at pointKey.
func (t *Table) Attach(jackKey Key, jack cards.Card, owner PlayerID, pointKey Key) error {
	point, ok := t.Get(pointKey)
	if !ok {
		return fmt.Errorf("point card %s not on table", pointKey)
	}
	if !point.Face.IsPoint() {
		return fmt.Errorf("card %s at %s is not a point card", point.ID(), pointKey)
	}
	if jack.Face != cards.FaceJack {
		return fmt.Errorf("card %s is not a jack", jack.ID())
	}
	t.put(jackKey, Entry{Card: jack, Stealing: pointKey, Owner: owner})
	return nil
}

// Chain returns the keys of the Jacks stacked on pointKey, oldest first.
func (t *Table) Chain(pointKey Key) []Key {
	if t == nil {
		return nil
	}
	return append([]Key(nil), t.chains[pointKey]...)
}

// Root resolves key to the point card at the bottom of its chain. A point card
// resolves to itself; a detached card does not resolve.
func (t *Table) Root(key Key) (Key, bool) {
	entry, ok := t.Get(key)
	if !ok {
		return "", false
	}
	if entry.IsAttachedJack() {
		return entry.Stealing, true
	}
	if entry.Face.IsPoint() {
		return key, true
	}
	return "", false
}

// TopJack returns the most recently played Jack on pointKey.
func (t *Table) TopJack(pointKey Key) (Key, Entry, bool) {
	chain := t.chains[pointKey]
	if len(chain) == 0 {
		return "", Entry{}, false
	}
	key := chain[len(chain)-1]
	entry, _ := t.Get(key)
	return key, entry, true
}

// DetachTop removes the most recently played Jack on pointKey from the table.
func (t *Table) DetachTop(pointKey Key) (Key, Entry, bool) {
	key, _, ok := t.TopJack(pointKey)
	if !ok {
		return "", Entry{}, false
	}
	entry, _ := t.Remove(key)
	return key, entry, true
}

// DetachAll cuts every Jack loose from pointKey. The Jacks stay on the table
// as free permanents; their keys are returned.
func (t *Table) DetachAll(pointKey Key) []Key {
	chain := t.chains[pointKey]
	delete(t.chains, pointKey)
	for _, jackKey := range chain {
		if entry, ok := t.entries.Get(jackKey); ok {
			entry.Stealing = ""
			t.entries.Put(jackKey, entry)
		}
	}
	return chain
}

// Remove takes a card off the table, keeping the steal graph consistent: a removed
// Jack leaves its chain, a removed point card leaves its Jacks detached.
func (t *Table) Remove(key Key) (Entry, bool) {
	entry, ok := t.entries.Remove(key)
	if !ok {
		return entry, false
	}
	if entry.IsAttachedJack() {
		t.chains[entry.Stealing] = removeKey(t.chains[entry.Stealing], key)
		if len(t.chains[entry.Stealing]) == 0 {
			delete(t.chains, entry.Stealing)
		}
	}
	if _, hasChain := t.chains[key]; hasChain {
		t.DetachAll(key)
	}
	return entry, true
}

// MoveChain transfers the point card at pointKey and every Jack stacked on it to dst,
// keeping keys and order.
func (t *Table) MoveChain(pointKey Key, dst *Table) error {
	point, ok := t.Get(pointKey)
	if !ok {
		return fmt.Errorf("point card %s not on table", pointKey)
	}
	chain := t.Chain(pointKey)
	jacks := make([]Entry, 0, len(chain))
	for _, jackKey := range chain {
		jack, _ := t.entries.Remove(jackKey)
		jacks = append(jacks, jack)
	}
	delete(t.chains, pointKey)
	t.entries.Remove(pointKey)

	dst.put(pointKey, point)
	for i, jackKey := range chain {
		dst.put(jackKey, jacks[i])
	}
	return nil
}

// SetOriginalOwner rewrites the original owner of a point card.
func (t *Table) SetOriginalOwner(key Key, owner PlayerID) {
	if entry, ok := t.entries.Get(key); ok {
		entry.OriginalOwner = owner
		t.entries.Put(key, entry)
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := NewTable()
	if t == nil {
		return out
	}
	out.entries = *t.entries.Clone()
	for point, chain := range t.chains {
		out.chains[point] = append([]Key(nil), chain...)
	}
	return out
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return t.entries.MarshalJSON()
}

// UnmarshalJSON decodes the entries and rebuilds the steal graph from the
// persisted stealing edges. Edges pointing at missing cards are dropped.
func (t *Table) UnmarshalJSON(data []byte) error {
	var entries Ordered[Entry]
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	t.entries = Ordered[Entry]{}
	t.chains = make(map[Key][]Key)
	for _, key := range entries.Keys() {
		entry, _ := entries.Get(key)
		if entry.Stealing != "" {
			target, ok := entries.Get(entry.Stealing)
			if !ok || !target.Face.IsPoint() {
				entry.Stealing = ""
			}
		}
		t.put(key, entry)
	}
	return nil
}

func (t *Table) GobEncode() ([]byte, error) {
	return t.MarshalJSON()
}

func (t *Table) GobDecode(data []byte) error {
	return t.UnmarshalJSON(data)
}

func insertKey(keys []Key, key Key) []Key {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	keys = append(keys, key)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func removeKey(keys []Key, key Key) []Key {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
