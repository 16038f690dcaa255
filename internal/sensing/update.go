package sensing

import "github.com/banshee-data/maze.explorer/internal/arena"

// Reading is the number of free cells each sensor reports before its first
// obstacle.
type Reading [NumSensors]int

// UpdateFromGroundTruth casts every ray from pose against truth. A ray stops
// at the first obstacle. Only UNKNOWN cells are written, so the first
// detection of a cell is final. Returns the number of cells written.
func UpdateFromGroundTruth(g *arena.Grid, pose arena.Pose, truth arena.Reader) int {
	written := 0
	for _, cells := range RayCells(pose) {
		for _, p := range cells {
			if !p.InBounds() {
				continue
			}
			actual, _ := truth.Get(p)
			current, _ := g.Get(p)
			if actual == arena.Obstacle {
				if current == arena.Unknown {
					_ = g.Set(p, arena.Obstacle)
					written++
				}
				break
			}
			if current == arena.Unknown {
				_ = g.Set(p, arena.Free)
				written++
			}
		}
	}
	return written
}

// UpdateFromReadings applies reported free counts. For sensor i the first
// free[i] cells of its ray become FREE and the next in-range cell becomes
// OBSTACLE. Live readings overwrite whatever the map held. Positions are
// counted along the whole ray, including cells off the grid. Returns the
// number of cells written.
func UpdateFromReadings(g *arena.Grid, pose arena.Pose, free Reading) int {
	written := 0
	for s, cells := range RayCells(pose) {
		for i, p := range cells {
			if !p.InBounds() {
				continue
			}
			if i >= free[s] {
				_ = g.Set(p, arena.Obstacle)
				written++
				break
			}
			_ = g.Set(p, arena.Free)
			written++
		}
	}
	return written
}

// ReadingFor returns what a working controller would report at pose in
// truth: per sensor the number of free cells before the first obstacle or
// the arena edge.
func ReadingFor(pose arena.Pose, truth arena.Reader) Reading {
	var r Reading
	for s, cells := range RayCells(pose) {
		for _, p := range cells {
			st, err := truth.Get(p)
			if err != nil || st != arena.Free {
				break
			}
			r[s]++
		}
	}
	return r
}
