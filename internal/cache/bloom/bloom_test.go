package bloom

import "testing"

func TestInsertAndContains(t *testing.T) {
	f := New(1000, 0.01, 4)
	f.Insert("x")
	if !f.ProbablyContains("x") {
		t.Fatal("expected ProbablyContains(x) to be true after Insert")
	}
	if f.ProbablyContains("never-inserted") {
		t.Fatal("expected unrelated key to probably not be present")
	}
}

func TestRotationAgesOutEntries(t *testing.T) {
	f := New(1000, 0.01, 4)
	f.Insert("x")
	if !f.ProbablyContains("x") {
		t.Fatal("expected x to be present immediately after insert")
	}
	for i := 0; i < 4; i++ {
		f.Rotate()
	}
	if f.ProbablyContains("x") {
		t.Fatal("expected x to have aged out after slotCount rotations")
	}
}

func TestTinyFilterDimensions(t *testing.T) {
	f := New(1, 0.5, 1)
	if f.BitsPerSlot() < 1 {
		t.Fatalf("expected m >= 1, got %d", f.BitsPerSlot())
	}
	if f.HashCount() < 1 {
		t.Fatalf("expected k >= 1, got %d", f.HashCount())
	}
	f.Insert("only")
	if !f.ProbablyContains("only") {
		t.Fatal("expected basic insert/contains to work at minimum dimensions")
	}
}

func TestRoundTripSerialization(t *testing.T) {
	f := New(500, 0.02, 6)
	keys := []string{"a", "b", "c", "d:cloud", "e:cloud"}
	for _, k := range keys {
		f.Insert(k)
	}

	img := f.ToBytes()

	g := New(1, 0.5, 1) // deliberately mis-sized; LoadFromBytes must override dims
	if err := g.LoadFromBytes(img); err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	for _, k := range keys {
		if !g.ProbablyContains(k) {
			t.Fatalf("expected reloaded filter to still contain %q", k)
		}
	}
}

func TestLoadFromBytesRejectsUnrecognizedImage(t *testing.T) {
	f := New(10, 0.1, 2)
	if err := f.LoadFromBytes([]byte("not a bloom image")); err != ErrUnrecognizedImage {
		t.Fatalf("expected ErrUnrecognizedImage, got %v", err)
	}
}

func TestMergeFromBytesOrsSlots(t *testing.T) {
	a := New(500, 0.02, 4)
	b := New(500, 0.02, 4)
	a.Insert("from-a")
	b.Insert("from-b")

	if err := a.MergeFromBytes(b.ToBytes()); err != nil {
		t.Fatalf("MergeFromBytes: %v", err)
	}
	if !a.ProbablyContains("from-a") || !a.ProbablyContains("from-b") {
		t.Fatal("expected merged filter to contain keys from both sides")
	}
}
