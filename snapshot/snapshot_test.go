package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/jarvis394/snapshot-interpolation/lerp"
)

func TestEntityDecodesMixedFieldKinds(t *testing.T) {
	payload := []byte(`{"id":7,"x":1.5,"label":"hero","alive":true,"q":{"x":0,"y":0.707,"z":0,"w":0.707},"gone":null}`)

	var entity Entity
	if err := json.Unmarshal(payload, &entity); err != nil {
		t.Fatalf("failed to decode entity: %v", err)
	}

	if id, ok := entity.ID.Int(); !ok || id != 7 {
		t.Fatalf("expected numeric id 7, got %v", entity.ID)
	}
	if x, ok := entity.Field("x").Number(); !ok || x != 1.5 {
		t.Fatalf("expected x=1.5, got %v", entity.Field("x"))
	}
	if label, ok := entity.Field("label").Text(); !ok || label != "hero" {
		t.Fatalf("expected label hero, got %v", entity.Field("label"))
	}
	if alive, ok := entity.Field("alive").Bool(); !ok || !alive {
		t.Fatalf("expected alive=true, got %v", entity.Field("alive"))
	}
	if q, ok := entity.Field("q").Quat(); !ok || q != (lerp.Quat{Y: 0.707, W: 0.707}) {
		t.Fatalf("expected quaternion field, got %v", entity.Field("q"))
	}
	if _, present := entity.Fields["gone"]; present {
		t.Fatalf("expected null field to be dropped")
	}
	if !entity.Field("missing").IsAbsent() {
		t.Fatalf("expected missing field to be absent")
	}
}

func TestEntityEncodesFlatObject(t *testing.T) {
	entity := Entity{
		ID: StringID("hero"),
		Fields: map[string]Value{
			"y":     Number(2),
			"x":     Number(1),
			"ghost": Absent(),
		},
	}

	data, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("failed to encode entity: %v", err)
	}
	if got, want := string(data), `{"id":"hero","x":1,"y":2}`; got != want {
		t.Fatalf("unexpected encoding: got %s, want %s", got, want)
	}
}

func TestQuaternionRequiresAllComponents(t *testing.T) {
	var value Value
	if err := json.Unmarshal([]byte(`{"x":0,"y":1}`), &value); err == nil {
		t.Fatalf("expected partial quaternion to be rejected")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	original := Snapshot{
		Sequence:  3,
		Timestamp: 1000,
		State: State{
			"heroes": {{ID: StringID("a"), Fields: map[string]Value{"x": Number(1)}}},
		},
	}

	cloned := original.Clone()
	cloned.State["heroes"][0].Fields["x"] = Number(99)
	cloned.State["heroes"] = append(cloned.State["heroes"], Entity{ID: StringID("b")})

	if x, _ := original.State["heroes"][0].Field("x").Number(); x != 1 {
		t.Fatalf("expected original field to stay 1, got %v", x)
	}
	if len(original.Collection("heroes")) != 1 {
		t.Fatalf("expected original collection length 1, got %d", len(original.Collection("heroes")))
	}
}
