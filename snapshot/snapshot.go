// Package snapshot defines the timestamped world-state captures that are
// buffered and blended on the client.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Sequence is the server frame number stamped on a snapshot.
type Sequence = uint64

// Timestamp is a source-clock time in milliseconds.
type Timestamp = int64

// EntityID identifies an entity across snapshots. It holds either a string or
// an integer, mirroring what producers put on the wire.
type EntityID struct {
	str   string
	num   int64
	isNum bool
}

// StringID builds a textual entity identifier.
func StringID(id string) EntityID { return EntityID{str: id} }

// IntID builds a numeric entity identifier.
func IntID(id int64) EntityID { return EntityID{num: id, isNum: true} }

// IsInt reports whether the identifier is numeric.
func (id EntityID) IsInt() bool { return id.isNum }

// Int returns the numeric identifier and whether id is numeric.
func (id EntityID) Int() (int64, bool) { return id.num, id.isNum }

func (id EntityID) String() string {
	if id.isNum {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

// MarshalJSON renders the identifier as a JSON string or number.
func (id EntityID) MarshalJSON() ([]byte, error) {
	if id.isNum {
		return []byte(strconv.FormatInt(id.num, 10)), nil
	}
	return json.Marshal(id.str)
}

// UnmarshalJSON accepts either a JSON string or an integer.
func (id *EntityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("entity id must be a string or integer, got %s", data)
	}
	*id = IntID(n)
	return nil
}

// Entity is one record of a named collection. Fields is keyed by the caller's
// schema; the "id" key is reserved for the identifier on the wire.
type Entity struct {
	ID     EntityID
	Fields map[string]Value
}

// Field returns the named value, absent when the entity does not carry it.
func (e Entity) Field(name string) Value {
	return e.Fields[name]
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	cloned := Entity{ID: e.ID}
	if e.Fields != nil {
		cloned.Fields = make(map[string]Value, len(e.Fields))
		for k, v := range e.Fields {
			cloned.Fields[k] = v
		}
	}
	return cloned
}

const idKey = "id"

// MarshalJSON renders the entity as a flat object: {"id": ..., field: value}.
// Absent fields are omitted. Keys are emitted in sorted order.
func (e Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	idData, err := e.ID.MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"id":`)
	buf.Write(idData)

	keys := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		if k == idKey || v.IsAbsent() {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		keyData, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valueData, err := e.Fields[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(keyData)
		buf.WriteByte(':')
		buf.Write(valueData)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the flat object produced by MarshalJSON.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idData, ok := raw[idKey]
	if !ok {
		return fmt.Errorf("entity missing %q", idKey)
	}
	var id EntityID
	if err := id.UnmarshalJSON(idData); err != nil {
		return err
	}
	fields := make(map[string]Value, len(raw)-1)
	for k, v := range raw {
		if k == idKey {
			continue
		}
		var value Value
		if err := value.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		if value.IsAbsent() {
			continue
		}
		fields[k] = value
	}
	*e = Entity{ID: id, Fields: fields}
	return nil
}

// State maps collection names to positionally ordered entities.
type State map[string][]Entity

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	cloned := make(State, len(s))
	for name, entities := range s {
		cloned[name] = CloneEntities(entities)
	}
	return cloned
}

// CloneEntities returns a deep copy of the provided entity slice.
func CloneEntities(entities []Entity) []Entity {
	if entities == nil {
		return nil
	}
	cloned := make([]Entity, len(entities))
	for i, entity := range entities {
		cloned[i] = entity.Clone()
	}
	return cloned
}

// Snapshot captures the world at one server frame.
type Snapshot struct {
	Sequence  Sequence  `json:"frame" jsonschema:"title=Frame,description=Server frame number; grows with timestamp"`
	Timestamp Timestamp `json:"timestamp" jsonschema:"title=Timestamp,description=Source clock time in milliseconds"`
	State     State     `json:"state" jsonschema:"description=Entity collections keyed by name"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Sequence:  s.Sequence,
		Timestamp: s.Timestamp,
		State:     s.State.Clone(),
	}
}

// Collection returns the named entity collection.
func (s Snapshot) Collection(name string) []Entity {
	return s.State[name]
}
