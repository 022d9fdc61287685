package frameid

import "testing"

func TestOrdinal_TopFrameSeeded(t *testing.T) {
	r := NewRegistry()
	if got := r.Ordinal(""); got != 0 {
		t.Fatalf("top frame ordinal: got %d, want 0", got)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len after seed: got %d, want 1", got)
	}
}

func TestOrdinal_LazyInterning(t *testing.T) {
	r := NewRegistry()
	if got := r.Ordinal("frame-a"); got != 1 {
		t.Fatalf("first frame: got %d, want 1", got)
	}
	if got := r.Ordinal("frame-b"); got != 2 {
		t.Fatalf("second frame: got %d, want 2", got)
	}
	// Re-sighting returns the same ordinal.
	if got := r.Ordinal("frame-a"); got != 1 {
		t.Errorf("re-sighted frame: got %d, want 1", got)
	}
}

func TestEncode(t *testing.T) {
	r := NewRegistry()
	if got := r.Encode("", 42); got != "0-42" {
		t.Errorf("Encode top: got %q, want %q", got, "0-42")
	}
	if got := r.Encode("frame-a", 7); got != "1-7" {
		t.Errorf("Encode frame: got %q, want %q", got, "1-7")
	}
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.Ordinal("frame-a")
	r.Ordinal("frame-b")
	r.Reset()
	if got := r.Len(); got != 1 {
		t.Fatalf("Len after reset: got %d, want 1", got)
	}
	// Ordinals restart from 1 after reset.
	if got := r.Ordinal("frame-c"); got != 1 {
		t.Errorf("first frame after reset: got %d, want 1", got)
	}
}

func TestDecode(t *testing.T) {
	ord, backend, err := Decode("3-1234")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ord != 3 || backend != 1234 {
		t.Errorf("Decode: got (%d,%d), want (3,1234)", ord, backend)
	}

	for _, bad := range []string{"", "12", "a-b", "1-", "-2"} {
		if _, _, err := Decode(bad); err == nil {
			t.Errorf("Decode(%q): expected error", bad)
		}
	}
}
