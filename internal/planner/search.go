package planner

import "github.com/banshee-data/maze.explorer/internal/arena"

const noParent = -1

type node struct {
	g      int
	parent int
	open   bool
	closed bool
}

// search holds the state of one A* run. It is discarded when run returns.
type search struct {
	m        arena.Reader
	policy   Policy
	initial  arena.Heading
	goal     arena.Position
	nodes    [arena.CellCount]node
	open     []int
	expanded int
}

func index(p arena.Position) int { return p.Row*arena.Cols + p.Col }

func position(i int) arena.Position {
	return arena.Position{Row: i / arena.Cols, Col: i % arena.Cols}
}

func (s *search) f(i int) int {
	return s.nodes[i].g + s.policy.Heuristic(position(i), s.goal)
}

// neighbours returns the clear 4-neighbours of p in the order up, down,
// left, right.
func (s *search) neighbours(p arena.Position) []arena.Position {
	out := make([]arena.Position, 0, 4)
	for _, n := range [4]arena.Position{p.Add(-1, 0), p.Add(1, 0), p.Add(0, -1), p.Add(0, 1)} {
		if s.m.IsClearCenter(n) {
			out = append(out, n)
		}
	}
	return out
}

func (s *search) run(start arena.Position) ([]arena.Position, int, error) {
	for i := range s.nodes {
		s.nodes[i].parent = noParent
	}
	goal := index(s.goal)
	si := index(start)
	s.nodes[si].open = true
	s.open = append(s.open, si)

	for len(s.open) > 0 {
		// Strict < keeps the earliest inserted node on ties.
		best := 0
		for k := 1; k < len(s.open); k++ {
			if s.f(s.open[k]) < s.f(s.open[best]) {
				best = k
			}
		}
		cur := s.open[best]
		if cur == goal {
			return s.path(cur), s.nodes[cur].g, nil
		}
		s.open = append(s.open[:best], s.open[best+1:]...)
		s.nodes[cur].open = false
		s.expanded++

		from := position(cur)
		for _, to := range s.neighbours(from) {
			ni := index(to)
			n := &s.nodes[ni]
			if n.closed {
				continue
			}
			g := s.nodes[cur].g + s.policy.StepCost(s.initial, from, to)
			if n.open {
				if g < n.g {
					n.g = g
					n.parent = cur
				}
				continue
			}
			n.g = g
			n.parent = cur
			n.open = true
			s.open = append(s.open, ni)
		}
		s.nodes[cur].closed = true
	}
	return nil, 0, ErrNoPathFound
}

func (s *search) path(end int) []arena.Position {
	var rev []arena.Position
	for i := end; i != noParent; i = s.nodes[i].parent {
		rev = append(rev, position(i))
	}
	out := make([]arena.Position, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}
