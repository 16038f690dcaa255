// Package arena models the 20x15 maze the robot explores: cell states,
// positions, headings and the occupancy grid.
//
// Row 0 is the edge nearest the goal zone. Increasing row is SOUTH and
// increasing column is EAST. The robot occupies a 3x3 footprint, so a position
// is only reachable when its whole neighbourhood is in bounds and FREE
// (see IsClearCenter).
package arena
