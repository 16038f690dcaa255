package robot

import (
	"context"
	"sync"
)

// NopDriver accepts every primitive immediately.
type NopDriver struct{}

func (NopDriver) Drive(context.Context, Primitive) error { return nil }

// Recorder is a Driver that remembers every command and milestone. It is
// used by the simulator to keep a trajectory and by tests.
type Recorder struct {
	mu      sync.Mutex
	sent    []Primitive
	batches [][]Primitive
	events  []Event
}

func (d *Recorder) Drive(ctx context.Context, p Primitive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, p)
	return nil
}

func (d *Recorder) Notify(_ context.Context, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

// Trajectory returns every primitive driven so far as one string.
func (d *Recorder) Trajectory() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FormatPrimitives(d.sent)
}

// Events returns the milestones received.
func (d *Recorder) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Batches returns the sequences received through DriveAll.
func (d *Recorder) Batches() [][]Primitive {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]Primitive(nil), d.batches...)
}

// BatchRecorder wraps a Recorder so that it also satisfies BatchDriver.
type BatchRecorder struct {
	*Recorder
}

func (d BatchRecorder) DriveAll(ctx context.Context, ps []Primitive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, append([]Primitive(nil), ps...))
	d.sent = append(d.sent, ps...)
	return nil
}
