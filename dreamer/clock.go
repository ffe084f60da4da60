package dreamer

import (
	"errors"
	"time"

	"blockdreamer/types"
)

// SlotClock maps wall-clock time to slots.
type SlotClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
}

func NewSlotClock(genesis time.Time, secondsPerSlot uint64) (*SlotClock, error) {
	if genesis.IsZero() || genesis.Unix() <= 0 {
		return nil, errors.New("slot clock: unknown genesis time")
	}
	if secondsPerSlot == 0 {
		return nil, errors.New("slot clock: slot duration must be positive")
	}
	return &SlotClock{Genesis: genesis, SlotDuration: time.Duration(secondsPerSlot) * time.Second}, nil
}

// SlotAt returns the slot containing t; times before genesis map to slot 0.
func (c *SlotClock) SlotAt(t time.Time) types.Slot {
	if t.Before(c.Genesis) {
		return 0
	}
	return types.Slot(t.Sub(c.Genesis) / c.SlotDuration)
}

func (c *SlotClock) SlotStart(slot types.Slot) time.Time {
	return c.Genesis.Add(time.Duration(slot) * c.SlotDuration)
}

// NextSlot returns the first slot starting strictly after t, and its start time.
func (c *SlotClock) NextSlot(t time.Time) (types.Slot, time.Time) {
	if t.Before(c.Genesis) {
		return 0, c.Genesis
	}
	next := c.SlotAt(t) + 1
	return next, c.SlotStart(next)
}
