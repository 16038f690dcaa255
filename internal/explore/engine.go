// Package explore runs a robot through an unknown arena: it follows the
// wall for one lap, visits observation points around every cell still
// unknown, then drives back to the start zone and hands over the map.
package explore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
	"github.com/banshee-data/maze.explorer/internal/timeutil"
)

// Phase is a stage of an exploration run.
type Phase int

const (
	PhaseWall Phase = iota + 1
	PhaseFill
	PhaseReturn
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWall:
		return "wall"
	case PhaseFill:
		return "fill"
	case PhaseReturn:
		return "return"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Outcome is how a run ended. Early termination is not an error.
type Outcome int

const (
	Completed Outcome = iota + 1
	TimedOut
	CoverageReached
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	case CoverageReached:
		return "coverage reached"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MapStore persists the map at phase boundaries. reason is "lap" or
// "explored".
type MapStore interface {
	SaveMap(ctx context.Context, reason string, snap arena.Snapshot) error
}

// Config controls a run. Zero values select the defaults.
type Config struct {
	// Start is where the robot stands when the run begins. Default: the
	// start zone facing NORTH.
	Start arena.Pose
	// ReturnHeading is the heading the robot finishes in. Default WEST.
	ReturnHeading arena.Heading
	// TimeLimit ends the run early once exceeded. Zero means no limit.
	TimeLimit time.Duration
	// CoverageTarget ends the run early once the explored ratio reaches it.
	// Zero, or anything at or above 1, means explore everything.
	CoverageTarget float64
	// SkipInitialSense starts moving without a reading at the start pose.
	// Hardware controllers only report after a command.
	SkipInitialSense bool

	Clock   timeutil.Clock
	Planner *planner.Planner
	Store   MapStore
	Sink    telemetry.Sink
}

func (c Config) withDefaults() Config {
	if !c.Start.Heading.Valid() {
		c.Start = arena.Pose{Pos: arena.Start, Heading: arena.North}
	}
	if !c.ReturnHeading.Valid() {
		c.ReturnHeading = arena.West
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	if c.Planner == nil {
		c.Planner = planner.New()
	}
	if c.Sink == nil {
		c.Sink = telemetry.Nop{}
	}
	return c
}

// Step is one executed primitive and the state it produced.
type Step struct {
	Phase     Phase
	Primitive robot.Primitive
	Pose      arena.Pose
	Coverage  float64
}

// Result summarises a run.
type Result struct {
	Outcome      Outcome
	Phase        Phase
	LapCompleted bool
	Coverage     float64
	Elapsed      time.Duration
	// Unreachable lists cells gap filling gave up on.
	Unreachable []arena.Position
	Steps       []Step
	Map         arena.Snapshot
}

// Primitives renders every executed primitive, e.g. "FFFLF".
func (r *Result) Primitives() string {
	ps := make([]robot.Primitive, len(r.Steps))
	for i, s := range r.Steps {
		ps[i] = s.Primitive
	}
	return robot.FormatPrimitives(ps)
}

// halt unwinds the phase loops when the time or coverage budget runs out.
type halt struct{ outcome Outcome }

func (h halt) Error() string { return "explore: " + h.outcome.String() }

// Engine is single use: build one per run.
type Engine struct {
	robot *robot.Robot
	cfg   Config

	phase       Phase
	deadline    timeutil.Deadline
	lap         bool
	seq         int
	steps       []Step
	skip        map[arena.Position]bool
	unreachable []arena.Position
}

// New returns an Engine driving r. The robot must already stand at
// cfg.Start.
func New(r *robot.Robot, cfg Config) *Engine {
	return &Engine{
		robot: r,
		cfg:   cfg.withDefaults(),
		skip:  make(map[arena.Position]bool),
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Run explores until the map is settled and the robot is back at start,
// or until the time or coverage budget ends the run early. An error is
// returned only for driver, sensor or context failures; the Result is
// filled in either way.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.deadline = timeutil.NewDeadline(e.cfg.Clock, e.cfg.TimeLimit)
	e.phase = PhaseWall
	if !e.cfg.SkipInitialSense {
		if _, err := e.robot.Sense(ctx); err != nil {
			return e.result(0), fmt.Errorf("initial sense: %w", err)
		}
	}
	e.publish(0)

	err := e.run(ctx)
	var h halt
	switch {
	case err == nil:
		monitoring.Logf("explore: completed in %s with %d primitives, coverage %.1f%%",
			e.deadline.Elapsed().Round(time.Millisecond), len(e.steps), 100*e.grid().CoverageRatio())
		return e.result(Completed), nil
	case errors.As(err, &h):
		monitoring.Logf("explore: %s during %s phase, coverage %.1f%%",
			h.outcome, e.phase, 100*e.grid().CoverageRatio())
		return e.result(h.outcome), nil
	default:
		return e.result(0), err
	}
}

func (e *Engine) run(ctx context.Context) error {
	if err := e.followWall(ctx); err != nil {
		return err
	}
	if !e.grid().Complete() {
		e.enter(PhaseFill)
		if err := e.fillGaps(ctx); err != nil {
			return err
		}
	}
	e.enter(PhaseReturn)
	if err := e.returnToStart(ctx); err != nil {
		return err
	}
	e.enter(PhaseDone)
	return nil
}

func (e *Engine) enter(p Phase) {
	monitoring.Logf("explore: %s -> %s at %s, coverage %.1f%%", e.phase, p, e.robot.Pose(), 100*e.grid().CoverageRatio())
	e.phase = p
}

func (e *Engine) grid() *arena.Grid { return e.robot.Grid() }

// step executes p with a sensor update and checks the budget.
func (e *Engine) step(ctx context.Context, p robot.Primitive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	obs, err := e.robot.Execute(ctx, p)
	if err != nil {
		return err
	}
	e.record(p, obs.Pose)
	return e.checkBudget()
}

func (e *Engine) checkBudget() error {
	if e.deadline.Expired() {
		return halt{TimedOut}
	}
	target := e.cfg.CoverageTarget
	if target > 0 && target < 1 && e.grid().CoverageRatio() >= target {
		return halt{CoverageReached}
	}
	return nil
}

func (e *Engine) record(p robot.Primitive, pose arena.Pose) {
	e.steps = append(e.steps, Step{
		Phase:     e.phase,
		Primitive: p,
		Pose:      pose,
		Coverage:  e.grid().CoverageRatio(),
	})
	e.publish(p)
}

func (e *Engine) publish(p robot.Primitive) {
	e.seq++
	f := telemetry.Frame{
		Seq:      e.seq,
		Phase:    e.phase.String(),
		Pose:     e.robot.Pose(),
		Coverage: e.grid().CoverageRatio(),
		Map:      e.grid().Snapshot(),
	}
	if p != 0 {
		f.Primitive = p.String()
	}
	e.cfg.Sink.Publish(f)
}

func (e *Engine) save(ctx context.Context, reason string) error {
	if e.cfg.Store == nil {
		return nil
	}
	if err := e.cfg.Store.SaveMap(ctx, reason, e.grid().Snapshot()); err != nil {
		return fmt.Errorf("save %s map: %w", reason, err)
	}
	return nil
}

func (e *Engine) result(o Outcome) *Result {
	return &Result{
		Outcome:      o,
		Phase:        e.phase,
		LapCompleted: e.lap,
		Coverage:     e.grid().CoverageRatio(),
		Elapsed:      e.deadline.Elapsed(),
		Unreachable:  append([]arena.Position(nil), e.unreachable...),
		Steps:        append([]Step(nil), e.steps...),
		Map:          e.grid().Snapshot(),
	}
}
