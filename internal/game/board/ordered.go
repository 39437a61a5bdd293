package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Ordered is a keyed collection that iterates in key creation order. Removing an
// entry never shifts the keys of the others.
type Ordered[V any] struct {
	keys  []Key
	items map[Key]V
}

// NewOrdered returns an empty collection.
func NewOrdered[V any]() *Ordered[V] {
	return &Ordered[V]{items: make(map[Key]V)}
}

// Len returns the number of entries.
func (o *Ordered[V]) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Get returns the value stored under key.
func (o *Ordered[V]) Get(key Key) (V, bool) {
	var zero V
	if o == nil || o.items == nil {
		return zero, false
	}
	v, ok := o.items[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Ordered[V]) Has(key Key) bool {
	_, ok := o.Get(key)
	return ok
}

// Put stores v under key, keeping creation order. Replacing an existing key keeps its position.
func (o *Ordered[V]) Put(key Key, v V) {
	if o.items == nil {
		o.items = make(map[Key]V)
	}
	if _, exists := o.items[key]; !exists {
		idx := sort.Search(len(o.keys), func(i int) bool { return key.Less(o.keys[i]) })
		o.keys = append(o.keys, "")
		copy(o.keys[idx+1:], o.keys[idx:])
		o.keys[idx] = key
	}
	o.items[key] = v
}

// Remove deletes key and returns the value it held.
func (o *Ordered[V]) Remove(key Key) (V, bool) {
	v, ok := o.Get(key)
	if !ok {
		return v, false
	}
	delete(o.items, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// Keys returns a copy of the keys in creation order.
func (o *Ordered[V]) Keys() []Key {
	if o == nil {
		return nil
	}
	return append([]Key(nil), o.keys...)
}

// Values returns the values in creation order.
func (o *Ordered[V]) Values() []V {
	if o == nil {
		return nil
	}
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.items[k])
	}
	return out
}

// Each calls fn for every entry in creation order until fn returns false.
func (o *Ordered[V]) Each(fn func(Key, V) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.items[k]) {
			return
		}
	}
}

// Clone returns a shallow copy; values are copied by assignment.
func (o *Ordered[V]) Clone() *Ordered[V] {
	out := NewOrdered[V]()
	if o == nil {
		return out
	}
	out.keys = append(out.keys, o.keys...)
	for k, v := range o.items {
		out.items[k] = v
	}
	return out
}

// MarshalJSON encodes the collection as a JSON object whose members appear in creation order.
func (o *Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if o != nil {
		for i, k := range o.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(string(k))
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(o.items[k])
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", k, err)
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object (or null) and restores creation order from the keys.
func (o *Ordered[V]) UnmarshalJSON(data []byte) error {
	raw := make(map[string]V)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.keys = nil
	o.items = make(map[Key]V, len(raw))
	for k, v := range raw {
		o.Put(Key(k), v)
	}
	return nil
}

// GobEncode lets snapshots holding unexported state travel through encoding/gob.
func (o *Ordered[V]) GobEncode() ([]byte, error) {
	return o.MarshalJSON()
}

// GobDecode is the inverse of GobEncode.
func (o *Ordered[V]) GobDecode(data []byte) error {
	return o.UnmarshalJSON(data)
}
