package sensing

import (
	"context"
	"fmt"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// GroundTruth senses against a known map, for simulation.
type GroundTruth struct {
	truth arena.Snapshot
}

// NewGroundTruth returns a backend that ray casts against truth.
func NewGroundTruth(truth arena.Snapshot) *GroundTruth {
	return &GroundTruth{truth: truth}
}

// Sense updates g with what the rays see from pose.
func (b *GroundTruth) Sense(_ context.Context, g *arena.Grid, pose arena.Pose) (int, error) {
	return UpdateFromGroundTruth(g, pose, &b.truth), nil
}

// ReadingSource yields one sensor reading per executed primitive. On real
// hardware NextReading blocks until the controller reports.
type ReadingSource interface {
	NextReading(ctx context.Context) (Reading, error)
}

// Hardware senses from controller-reported free counts.
type Hardware struct {
	Source ReadingSource
}

// Sense waits for the next reading and applies it to g.
func (b *Hardware) Sense(ctx context.Context, g *arena.Grid, pose arena.Pose) (int, error) {
	r, err := b.Source.NextReading(ctx)
	if err != nil {
		return 0, fmt.Errorf("read sensors: %w", err)
	}
	return UpdateFromReadings(g, pose, r), nil
}

// Readings is a ReadingSource over a fixed sequence, used for replays and
// tests. Once drained it returns ErrNoMoreReadings.
type Readings struct {
	queue []Reading
}

// NewReadings returns a source that yields rs in order.
func NewReadings(rs ...Reading) *Readings {
	return &Readings{queue: rs}
}

func (s *Readings) NextReading(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}
	if len(s.queue) == 0 {
		return Reading{}, ErrNoMoreReadings
	}
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r, nil
}

// Remaining reports how many readings are left.
func (s *Readings) Remaining() int { return len(s.queue) }
