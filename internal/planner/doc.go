// Package planner finds fastest paths for the 3x3 robot with A*.
//
// What:
//
//   - Search runs over 4-neighbours whose footprint is clear (arena.IsClearCenter).
//   - Edge cost and heuristic come from a Policy. The Legacy policy fixes a
//     primary axis from the starting heading and charges 1 for steps along it
//     and 2 across it, with a signed heuristic (row-goal.row)+(col-goal.col).
//     Manhattan keeps the costs but uses |dr|+|dc|.
//   - The open set is scanned for the minimum g+h; ties go to the node that
//     entered the open set first, which keeps routes reproducible.
//   - A route carries the heading of every step and the final heading, used
//     to chain legs through a waypoint.
//
// Complexity:
//
//   - O(V^2) time for V=300 cells because of the linear open-set scan, O(V)
//     memory. A heap would not preserve insertion order among equal keys.
//
// Errors:
//
//   - arena.ErrInvalidCoordinate when the start or goal is off the grid or
//     the start footprint is not clear.
//   - ErrNoPathFound when the open set empties, including when the goal
//     footprint is not clear.
package planner
