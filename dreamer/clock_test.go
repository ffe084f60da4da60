package dreamer

import (
	"testing"
	"time"
)

func TestSlotClock(t *testing.T) {
	genesis := time.Unix(1606824023, 0)
	clock, err := NewSlotClock(genesis, 12)
	if err != nil {
		t.Fatalf("NewSlotClock failed: %v", err)
	}

	if s := clock.SlotAt(genesis.Add(-time.Hour)); s != 0 {
		t.Errorf("expected slot 0 before genesis, got %d", s)
	}
	if s := clock.SlotAt(genesis.Add(25 * time.Second)); s != 2 {
		t.Errorf("expected slot 2, got %d", s)
	}
	if start := clock.SlotStart(100); !start.Equal(genesis.Add(1200 * time.Second)) {
		t.Errorf("unexpected start of slot 100: %s", start)
	}

	// Exactly on a boundary the next slot is the following one
	slot, start := clock.NextSlot(clock.SlotStart(100))
	if slot != 101 || !start.Equal(clock.SlotStart(101)) {
		t.Errorf("expected slot 101, got %d at %s", slot, start)
	}
	slot, start = clock.NextSlot(clock.SlotStart(100).Add(11 * time.Second))
	if slot != 101 || !start.Equal(clock.SlotStart(101)) {
		t.Errorf("expected slot 101, got %d at %s", slot, start)
	}
	slot, start = clock.NextSlot(genesis.Add(-time.Minute))
	if slot != 0 || !start.Equal(genesis) {
		t.Errorf("expected genesis slot, got %d at %s", slot, start)
	}
}

func TestSlotClockInvalid(t *testing.T) {
	if _, err := NewSlotClock(time.Time{}, 12); err == nil {
		t.Error("expected error for unknown genesis")
	}
	if _, err := NewSlotClock(time.Unix(1606824023, 0), 0); err == nil {
		t.Error("expected error for zero slot duration")
	}
}
