package ringbuffer

import "testing"

func TestPushGetRoundTrip(t *testing.T) {
	rb := New(4)
	rb.Push(10, []byte{1, 2, 3}, 5000)

	pixels, ts, ok := rb.Get(10)
	if !ok {
		t.Fatal("expected Get to find frame 10")
	}
	if string(pixels) != "\x01\x02\x03" || ts != 5000 {
		t.Errorf("Get() = %v, %d, want {1,2,3}, 5000", pixels, ts)
	}
}

func TestGetMissingFrame(t *testing.T) {
	rb := New(4)
	if _, _, ok := rb.Get(99); ok {
		t.Error("expected Get on empty buffer to return not found")
	}
}

func TestOverwriteBumpsCounter(t *testing.T) {
	rb := New(4)
	rb.Push(1, []byte{1}, 0) // slot 1
	rb.Push(5, []byte{2}, 0) // slot 1 too (5 % 4 == 1), different id

	if _, _, ok := rb.Get(1); ok {
		t.Error("frame 1 should have been evicted by frame 5 colliding on the same slot")
	}
	pixels, _, ok := rb.Get(5)
	if !ok || string(pixels) != "\x02" {
		t.Errorf("Get(5) = %v, %v, want {2}, true", pixels, ok)
	}
	if got := rb.Stats().TotalOverwriteFrames; got != 1 {
		t.Errorf("TotalOverwriteFrames = %d, want 1", got)
	}
}

func TestSameIDPushDoesNotCountAsOverwrite(t *testing.T) {
	rb := New(4)
	rb.Push(1, []byte{1}, 0)
	rb.Push(1, []byte{2}, 10) // same id, same slot: not an "overwrite" in the counted sense

	if got := rb.Stats().TotalOverwriteFrames; got != 0 {
		t.Errorf("TotalOverwriteFrames = %d, want 0", got)
	}
	pixels, ts, ok := rb.Get(1)
	if !ok || string(pixels) != "\x02" || ts != 10 {
		t.Errorf("Get(1) = %v, %d, %v, want {2}, 10, true", pixels, ts, ok)
	}
}
