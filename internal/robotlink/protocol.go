// Package robotlink speaks the controller protocol over a serialmux link.
//
// Outbound lines:
//
//	[a]<primitives>   motion, consecutive F run-length encoded ("LF3R")
//	[a]E              exploration finished
//	[a]C              robot back at start
//	[a]S              return path was empty
//	[b]MDF|<explored>|<obstacles>   map descriptors for the operator tablet
//
// Inbound lines are sensor frames ("Explore:" followed by six digits, the
// free cell count of each sensor) and operator commands ("StartPoint r c",
// "WayPoint r c", "FSP").
package robotlink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/sensing"
)

var (
	ErrSensorDesync = errors.New("robotlink: sensor frame desync")
	ErrLinkClosed   = errors.New("robotlink: link closed")
	ErrBadCommand   = errors.New("robotlink: malformed operator command")
)

const (
	motionPrefix     = "[a]"
	descriptorPrefix = "[b]"
	sensorPrefix     = "Explore:"
)

// Controller acknowledgements and milestones, sent after motionPrefix.
const (
	codeExplored  = "E"
	codeReturned  = "C"
	codeEmptyPath = "S"
)

// EncodePrimitives run-length encodes forward moves: "FFFLF" becomes
// "F3LF1". Rotations are sent as is.
func EncodePrimitives(ps []robot.Primitive) string {
	var b strings.Builder
	for i := 0; i < len(ps); {
		if ps[i] != robot.Forward {
			b.WriteByte(byte(ps[i]))
			i++
			continue
		}
		n := 0
		for i < len(ps) && ps[i] == robot.Forward {
			n++
			i++
		}
		b.WriteByte('F')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// DecodePrimitives reverses EncodePrimitives.
func DecodePrimitives(s string) ([]robot.Primitive, error) {
	var out []robot.Primitive
	for i := 0; i < len(s); {
		switch p := robot.Primitive(s[i]); p {
		case robot.Left, robot.Right:
			out = append(out, p)
			i++
		case robot.Forward:
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(s[i+1 : j])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: bad forward count in %q", robot.ErrInvalidPrimitive, s)
			}
			for k := 0; k < n; k++ {
				out = append(out, robot.Forward)
			}
			i = j
		default:
			return nil, fmt.Errorf("%w: %q in %q", robot.ErrInvalidPrimitive, s[i], s)
		}
	}
	return out, nil
}

// MotionLine frames an encoded motion command.
func MotionLine(ps []robot.Primitive) string {
	if len(ps) == 0 {
		return motionPrefix + codeEmptyPath
	}
	return motionPrefix + EncodePrimitives(ps)
}

// DescriptorLine frames both map descriptors.
func DescriptorLine(d mdf.Descriptors) string {
	return descriptorPrefix + "MDF|" + d.Explored + "|" + d.Obstacles
}

// ParseReading parses a sensor frame. Only the first six characters after
// the prefix are read; each must be a digit.
func ParseReading(line string) (sensing.Reading, error) {
	var r sensing.Reading
	body, ok := strings.CutPrefix(strings.TrimSpace(line), sensorPrefix)
	if !ok {
		return r, fmt.Errorf("%w: %q", ErrSensorDesync, line)
	}
	if len(body) < sensing.NumSensors {
		return r, fmt.Errorf("%w: %d readings in %q, want %d", ErrSensorDesync, len(body), line, sensing.NumSensors)
	}
	for i := range r {
		c := body[i]
		if c < '0' || c > '9' {
			return r, fmt.Errorf("%w: reading %d is %q", ErrSensorDesync, i, c)
		}
		r[i] = int(c - '0')
	}
	return r, nil
}

// FormatReading renders r as a sensor frame.
func FormatReading(r sensing.Reading) string {
	var b strings.Builder
	b.WriteString(sensorPrefix)
	for _, v := range r {
		b.WriteByte('0' + byte(min(max(v, 0), 9)))
	}
	return b.String()
}

// CommandKind identifies an operator command.
type CommandKind int

const (
	CommandStartPoint CommandKind = iota + 1
	CommandWayPoint
	CommandFastestPath
)

func (k CommandKind) String() string {
	switch k {
	case CommandStartPoint:
		return "StartPoint"
	case CommandWayPoint:
		return "WayPoint"
	case CommandFastestPath:
		return "FSP"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is an operator request received over the link.
type Command struct {
	Kind CommandKind
	Pos  arena.Position
}

// IsSensorFrame reports whether line looks like a sensor frame.
func IsSensorFrame(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), sensorPrefix)
}

// ParseCommand parses an operator line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrBadCommand)
	}
	switch fields[0] {
	case "FSP":
		return Command{Kind: CommandFastestPath}, nil
	case "StartPoint", "WayPoint":
		kind := CommandStartPoint
		if fields[0] == "WayPoint" {
			kind = CommandWayPoint
		}
		if len(fields) != 3 {
			return Command{}, fmt.Errorf("%w: %q wants a row and a column", ErrBadCommand, line)
		}
		row, err1 := strconv.Atoi(fields[1])
		col, err2 := strconv.Atoi(fields[2])
		if err := errors.Join(err1, err2); err != nil {
			return Command{}, fmt.Errorf("%w: %q: %v", ErrBadCommand, line, err)
		}
		pos := arena.Position{Row: row, Col: col}
		if !pos.InBounds() {
			return Command{}, fmt.Errorf("%w: %s", arena.ErrInvalidCoordinate, pos)
		}
		return Command{Kind: kind, Pos: pos}, nil
	}
	return Command{}, fmt.Errorf("%w: unknown command %q", ErrBadCommand, fields[0])
}
