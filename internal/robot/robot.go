package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/timeutil"
)

// SensingBackend refreshes the map from the robot's sensors at pose and
// reports how many cells it wrote.
type SensingBackend interface {
	Sense(ctx context.Context, g *arena.Grid, pose arena.Pose) (int, error)
}

// Driver forwards a primitive to the drive train. Hardware drivers block on
// I/O until the controller accepts the command.
type Driver interface {
	Drive(ctx context.Context, p Primitive) error
}

// BatchDriver can send a whole primitive sequence as one command.
type BatchDriver interface {
	Driver
	DriveAll(ctx context.Context, ps []Primitive) error
}

// Event is a run milestone reported to the controller.
type Event int

const (
	// EventExplored is sent once the map is settled, before returning.
	EventExplored Event = iota + 1
	// EventReturned is sent after the robot is back at start facing the
	// return heading.
	EventReturned
)

func (e Event) String() string {
	switch e {
	case EventExplored:
		return "explored"
	case EventReturned:
		return "returned"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Notifier receives run milestones.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Observation is what one executed primitive yields.
type Observation struct {
	Pose    arena.Pose
	Updated int
}

// Robot is the actuator the exploration engine drives: it sends each
// primitive to the driver, applies it to the pose and refreshes the map.
type Robot struct {
	state   *State
	backend SensingBackend
	driver  Driver
	clock   timeutil.Clock
	delay   time.Duration
	count   int
}

// Option configures a Robot.
type Option func(*Robot)

// WithDriver sets the drive train. The default accepts every primitive.
func WithDriver(d Driver) Option {
	return func(r *Robot) {
		if d != nil {
			r.driver = d
		}
	}
}

// WithStepDelay pauses for d on clock after every primitive, to pace a
// simulation for viewers.
func WithStepDelay(clock timeutil.Clock, d time.Duration) Option {
	return func(r *Robot) {
		if clock != nil {
			r.clock = clock
		}
		r.delay = d
	}
}

// New places a robot at start on grid, marking its footprint FREE. Call Sense
// once before the first primitive to take the initial reading.
func New(grid *arena.Grid, start arena.Pose, backend SensingBackend, opts ...Option) *Robot {
	r := &Robot{
		state:   NewState(grid, start),
		backend: backend,
		driver:  NopDriver{},
		clock:   timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Robot) Pose() arena.Pose { return r.state.Pose() }

func (r *Robot) Grid() *arena.Grid { return r.state.Grid() }

// Executed returns how many primitives have been applied.
func (r *Robot) Executed() int { return r.count }

// Driver returns the configured drive train.
func (r *Robot) Driver() Driver { return r.driver }

// Sense refreshes the map from the current pose.
func (r *Robot) Sense(ctx context.Context) (int, error) {
	if r.backend == nil {
		return 0, nil
	}
	return r.backend.Sense(ctx, r.state.Grid(), r.state.Pose())
}

// Execute drives p, applies it and refreshes the map.
func (r *Robot) Execute(ctx context.Context, p Primitive) (Observation, error) {
	pose, err := r.ExecuteBlind(ctx, p)
	if err != nil {
		return Observation{Pose: pose}, err
	}
	n, err := r.Sense(ctx)
	if err != nil {
		return Observation{Pose: pose}, err
	}
	return Observation{Pose: pose, Updated: n}, nil
}

// ExecuteBlind drives p and applies it without a sensor update.
func (r *Robot) ExecuteBlind(ctx context.Context, p Primitive) (arena.Pose, error) {
	if !p.Valid() {
		return r.Pose(), fmt.Errorf("%w: %q", ErrInvalidPrimitive, byte(p))
	}
	if err := r.driver.Drive(ctx, p); err != nil {
		return r.Pose(), fmt.Errorf("drive %s: %w", p, err)
	}
	if err := r.apply(ctx, p); err != nil {
		return r.Pose(), err
	}
	return r.Pose(), nil
}

// Travel executes ps without sensor updates, calling onStep after each
// primitive. A BatchDriver receives the whole sequence in one command.
func (r *Robot) Travel(ctx context.Context, ps []Primitive, onStep func(Primitive, arena.Pose)) error {
	if bd, ok := r.driver.(BatchDriver); ok {
		if err := bd.DriveAll(ctx, ps); err != nil {
			return fmt.Errorf("drive %s: %w", FormatPrimitives(ps), err)
		}
		for _, p := range ps {
			if err := r.apply(ctx, p); err != nil {
				return err
			}
			if onStep != nil {
				onStep(p, r.Pose())
			}
		}
		return nil
	}
	for _, p := range ps {
		if _, err := r.ExecuteBlind(ctx, p); err != nil {
			return err
		}
		if onStep != nil {
			onStep(p, r.Pose())
		}
	}
	return nil
}

// Notify forwards ev to the driver when it accepts milestones.
func (r *Robot) Notify(ctx context.Context, ev Event) error {
	if n, ok := r.driver.(Notifier); ok {
		return n.Notify(ctx, ev)
	}
	return nil
}

// apply moves the pose by p, then waits out the step delay. The pose has
// moved even when the wait is cut short by ctx.
func (r *Robot) apply(ctx context.Context, p Primitive) error {
	_ = r.state.Apply(p)
	r.count++
	if r.delay > 0 {
		return r.clock.Sleep(ctx, r.delay)
	}
	return nil
}
