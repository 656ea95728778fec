package names

import (
	"errors"
	"testing"

	"github.com/nathoo/worldcore/types"
)

func testView() types.WorldView {
	return types.WorldView{
		Location: types.LocationView{
			ID: "hall",
			Items: []types.ItemView{
				{ID: "rusty_key", Name: "Rusty Key"},
				{ID: "iron_door", Name: "Iron Door"},
			},
			NPCs: []types.NPCView{{ID: "guard", Name: "Old Guard"}},
		},
		Carrying: []types.ItemView{{ID: "golden_key", Name: "Golden Key"}},
	}
}

func TestResolve_ExactID(t *testing.T) {
	res, err := Resolve(testView(), types.Intent{Verb: "take", Object: "rusty_key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ObjectID != "rusty_key" {
		t.Errorf("expected rusty_key, got %q", res.ObjectID)
	}
}

func TestResolve_ByName_CaseInsensitive(t *testing.T) {
	res, err := Resolve(testView(), types.Intent{Verb: "examine", Object: "rusty KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ObjectID != "rusty_key" {
		t.Errorf("expected rusty_key, got %q", res.ObjectID)
	}
}

func TestResolve_PartialWord(t *testing.T) {
	id, err := ResolveName(testView(), "guard")
	if err != nil || id != "guard" {
		t.Fatalf("expected guard, got %q err=%v", id, err)
	}
	id, err = ResolveName(testView(), "door")
	if err != nil || id != "iron_door" {
		t.Fatalf("expected iron_door, got %q err=%v", id, err)
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	_, err := ResolveName(testView(), "key")
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %v", amb.Candidates)
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve(testView(), types.Intent{Verb: "take", Object: "dragon"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Error() != `you don't see "dragon" here` {
		t.Errorf("unexpected message: %s", nf.Error())
	}
}

func TestResolve_ObjectAndTarget(t *testing.T) {
	res, err := Resolve(testView(), types.Intent{Verb: "use", Object: "golden key", Target: "door"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ObjectID != "golden_key" || res.TargetID != "iron_door" {
		t.Errorf("got %+v", res)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Rusty Key "); got != "rusty_key" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestResolveName_FullNameBeatsWord(t *testing.T) {
	v := testView()
	v.Location.Items = append(v.Location.Items, types.ItemView{ID: "key", Name: "Key"})

	id, err := ResolveName(v, "key")
	if err != nil || id != "key" {
		t.Fatalf("expected the item named Key, got %q err=%v", id, err)
	}
	id, err = ResolveName(v, "Golden Key")
	if err != nil || id != "golden_key" {
		t.Fatalf("expected golden_key, got %q err=%v", id, err)
	}
}

func TestResolveName_EmptyView(t *testing.T) {
	var nf *NotFoundError
	if _, err := ResolveName(types.WorldView{}, "lamp"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
