package edit

import (
	"github.com/james-see/pianodaw/pkg/model"
)

// AddCCEvent inserts a controller event, replacing any event with the same
// tick and controller. Undo puts the replaced event back.
type AddCCEvent struct {
	clip     *model.Clip
	ev       model.CCEvent
	prev     model.CCEvent
	replaced bool
}

func NewAddCCEvent(clip *model.Clip, cc int, tick int64, value int) *AddCCEvent {
	return &AddCCEvent{clip: clip, ev: model.NewCCEvent(cc, tick, value)}
}

func (c *AddCCEvent) Execute() {
	c.prev, c.replaced = c.clip.AddCCEvent(c.ev)
}

func (c *AddCCEvent) Undo() {
	c.clip.RemoveCCEvents(c.ev.Tick, c.ev.CC)
	if c.replaced {
		c.clip.AddCCEvent(c.prev)
	}
}

func (c *AddCCEvent) Description() string {
	if c.ev.IsSustainPedal() {
		return "Add Pedal Event"
	}
	return "Add CC Event"
}

// RemoveCCEvent deletes the events at a tick for one controller, or for all
// controllers when cc is negative.
type RemoveCCEvent struct {
	clip    *model.Clip
	tick    int64
	cc      int
	removed []model.CCEvent
}

func NewRemoveCCEvent(clip *model.Clip, tick int64, cc int) *RemoveCCEvent {
	return &RemoveCCEvent{clip: clip, tick: tick, cc: cc}
}

func (c *RemoveCCEvent) Execute() {
	c.removed = c.clip.RemoveCCEvents(c.tick, c.cc)
}

func (c *RemoveCCEvent) Undo() {
	for _, e := range c.removed {
		c.clip.AddCCEvent(e)
	}
}

func (c *RemoveCCEvent) Description() string { return "Remove CC Event" }
