package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jarvis394/snapshot-interpolation/lerp"
)

// Kind identifies which variant a Value carries.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNumber
	KindString
	KindBool
	KindQuat
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindQuat:
		return "quat"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single entity field. The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	str  string
	quat lerp.Quat
}

// Number wraps a numeric field value.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// String wraps a text field value.
func String(v string) Value { return Value{kind: KindString, str: v} }

// Bool wraps a boolean field value.
func Bool(v bool) Value {
	value := Value{kind: KindBool}
	if v {
		value.num = 1
	}
	return value
}

// Quaternion wraps a rotation field value.
func Quaternion(q lerp.Quat) Value { return Value{kind: KindQuat, quat: q} }

// Absent returns the empty Value.
func Absent() Value { return Value{} }

// Kind reports the variant carried by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v carries no value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Number returns the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the string payload and whether v is a string.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean payload and whether v is a boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.num != 0, true
}

// Quat returns the quaternion payload and whether v is a quaternion.
func (v Value) Quat() (lerp.Quat, bool) {
	if v.kind != KindQuat {
		return lerp.Quat{}, false
	}
	return v.quat, true
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.str)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindQuat:
		return fmt.Sprintf("quat(%g, %g, %g, %g)", v.quat.X, v.quat.Y, v.quat.Z, v.quat.W)
	default:
		return "absent"
	}
}

// MarshalJSON renders v as a JSON scalar, a {x,y,z,w} object or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.num != 0)
	case KindQuat:
		return json.Marshal(v.quat)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, key := range []string{"x", "y", "z", "w"} {
			if _, ok := raw[key]; !ok {
				return fmt.Errorf("quaternion value missing %q component", key)
			}
		}
		var q lerp.Quat
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		*v = Quaternion(q)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported field value %s: %w", data, err)
		}
		*v = Number(n)
	}
	return nil
}
