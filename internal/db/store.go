package db

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

const (
	trajectoryBatch  = 64
	trajectoryBuffer = 4096
)

// RunRecorder ties a live run to the database. It saves maps at phase
// boundaries and, as a telemetry sink, hands frames to a writer goroutine
// that stores the trajectory in batches.
type RunRecorder struct {
	db  *DB
	run *Run

	frames  chan telemetry.Frame
	flushes chan flushRequest
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

type flushRequest struct {
	ctx   context.Context
	reply chan error
}

// StartRun creates a run record and returns its recorder.
func (db *DB) StartRun(ctx context.Context, source, configJSON string) (*RunRecorder, error) {
	run, err := db.CreateRun(ctx, source, configJSON)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("db: run %s started (%s)", run.ID, source)
	r := newRunRecorder(db, run, trajectoryBuffer)
	go r.record()
	return r, nil
}

func newRunRecorder(db *DB, run *Run, buffer int) *RunRecorder {
	return &RunRecorder{
		db:      db,
		run:     run,
		frames:  make(chan telemetry.Frame, buffer),
		flushes: make(chan flushRequest),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run returns the run being recorded.
func (r *RunRecorder) Run() *Run { return r.run }

// Dropped reports frames discarded because the writer fell behind.
func (r *RunRecorder) Dropped() uint64 { return r.dropped.Load() }

// SaveMap stores snap as a snapshot of the run. Queued trajectory points
// are written first so the two stay in step.
func (r *RunRecorder) SaveMap(ctx context.Context, reason string, snap arena.Snapshot) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	_, err := r.db.InsertSnapshot(ctx, r.run.ID, reason, snap)
	return err
}

// Publish queues one frame of the trajectory and never waits on the
// database. Frames are dropped when the queue is full or the run is
// finished.
func (r *RunRecorder) Publish(f telemetry.Frame) {
	select {
	case <-r.stopped:
		return
	default:
	}
	select {
	case r.frames <- f:
	default:
		if r.dropped.Add(1) == 1 {
			monitoring.Logf("db: run %s trajectory queue full, dropping frames", r.run.ID)
		}
	}
}

// Flush writes every queued trajectory point.
func (r *RunRecorder) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case r.flushes <- req:
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish flushes the trajectory, stops the writer and records the run's
// summary.
func (r *RunRecorder) Finish(ctx context.Context, s RunSummary) error {
	err := r.Flush(ctx)
	r.once.Do(func() { close(r.stop) })
	<-r.stopped
	if err != nil {
		return err
	}
	if n := r.Dropped(); n > 0 {
		monitoring.Logf("db: run %s dropped %d trajectory frames", r.run.ID, n)
	}
	monitoring.Logf("db: run %s finished: %s, coverage %.3f", r.run.ID, s.Outcome, s.Coverage)
	return r.db.FinishRun(ctx, r.run.ID, s)
}

func (r *RunRecorder) record() {
	defer close(r.stopped)
	var pending []TrajectoryPoint
	for {
		select {
		case f := <-r.frames:
			pending = append(pending, trajectoryPoint(f))
			if len(pending) >= trajectoryBatch {
				if err := r.db.AppendTrajectory(context.Background(), r.run.ID, pending...); err != nil {
					monitoring.Logf("db: run %s trajectory: %v", r.run.ID, err)
				}
				pending = nil
			}
		case req := <-r.flushes:
			// Frames published before the request are already queued.
		drain:
			for {
				select {
				case f := <-r.frames:
					pending = append(pending, trajectoryPoint(f))
				default:
					break drain
				}
			}
			var err error
			if len(pending) > 0 {
				err = r.db.AppendTrajectory(req.ctx, r.run.ID, pending...)
			}
			pending = nil
			req.reply <- err
		case <-r.stop:
			return
		}
	}
}

func trajectoryPoint(f telemetry.Frame) TrajectoryPoint {
	return TrajectoryPoint{
		Seq:       f.Seq,
		Phase:     f.Phase,
		Primitive: f.Primitive,
		Pose:      f.Pose,
		Coverage:  f.Coverage,
	}
}
