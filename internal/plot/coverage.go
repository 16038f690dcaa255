package plot

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/maze.explorer/internal/telemetry"
)

// CoverageStats summarises how quickly a run uncovered the arena.
type CoverageStats struct {
	Frames int `json:"frames"`
	// Final is the explored ratio at the last frame.
	Final float64 `json:"final"`
	// MeanGain and StdGain describe the per-primitive coverage increase.
	MeanGain float64 `json:"mean_gain"`
	StdGain  float64 `json:"std_gain"`
	// Idle counts primitives that revealed nothing.
	Idle int `json:"idle"`
	// PerPhase is the coverage gained in each phase.
	PerPhase map[string]float64 `json:"per_phase"`
}

// Coverage computes CoverageStats over frames in order.
func Coverage(frames []telemetry.Frame) CoverageStats {
	st := CoverageStats{Frames: len(frames), PerPhase: map[string]float64{}}
	if len(frames) == 0 {
		return st
	}
	st.Final = frames[len(frames)-1].Coverage

	var gains []float64
	prev := frames[0].Coverage
	for _, f := range frames[1:] {
		g := f.Coverage - prev
		prev = f.Coverage
		if f.Primitive == "" {
			continue
		}
		gains = append(gains, g)
		st.PerPhase[f.Phase] += g
		if g == 0 {
			st.Idle++
		}
	}
	if len(gains) > 1 {
		st.MeanGain, st.StdGain = stat.MeanStdDev(gains, nil)
	} else if len(gains) == 1 {
		st.MeanGain = gains[0]
	}
	return st
}
