package planner

import (
	"fmt"
	"strings"

	"github.com/banshee-data/maze.explorer/internal/arena"
)

// Policy prices steps and estimates the remaining cost to the goal.
type Policy interface {
	Name() string
	// StepCost prices a move between adjacent cells. initial is the heading
	// the search started with.
	StepCost(initial arena.Heading, from, to arena.Position) int
	Heuristic(cell, goal arena.Position) int
}

var (
	// Legacy reproduces the controller's first-generation planner: axis-fixed costs
	// and a signed heuristic that is not admissible.
	Legacy Policy = legacyPolicy{}
	// Manhattan uses the same costs with an admissible |dr|+|dc| heuristic.
	Manhattan Policy = manhattanPolicy{}
)

// PolicyByName resolves "legacy" or "manhattan". The empty name is Legacy.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "legacy":
		return Legacy, nil
	case "manhattan":
		return Manhattan, nil
	}
	return nil, fmt.Errorf("planner: unknown policy %q", name)
}

// axisCost is 1 when the step runs along the axis of initial and 2 otherwise.
// The axis never changes during a search.
func axisCost(initial arena.Heading, from, to arena.Position) int {
	if initial == arena.North || initial == arena.South {
		if from.Col == to.Col {
			return 1
		}
		return 2
	}
	if from.Row == to.Row {
		return 1
	}
	return 2
}

type legacyPolicy struct{}

func (legacyPolicy) Name() string { return "legacy" }

func (legacyPolicy) StepCost(initial arena.Heading, from, to arena.Position) int {
	return axisCost(initial, from, to)
}

func (legacyPolicy) Heuristic(cell, goal arena.Position) int {
	return (cell.Row - goal.Row) + (cell.Col - goal.Col)
}

type manhattanPolicy struct{}

func (manhattanPolicy) Name() string { return "manhattan" }

func (manhattanPolicy) StepCost(initial arena.Heading, from, to arena.Position) int {
	return axisCost(initial, from, to)
}

func (manhattanPolicy) Heuristic(cell, goal arena.Position) int {
	return abs(cell.Row-goal.Row) + abs(cell.Col-goal.Col)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
