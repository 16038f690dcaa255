package robotlink

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/mdf"
	"github.com/banshee-data/maze.explorer/internal/monitoring"
	"github.com/banshee-data/maze.explorer/internal/robot"
	"github.com/banshee-data/maze.explorer/internal/sensing"
	"github.com/banshee-data/maze.explorer/internal/serialmux"
)

// DefaultMDFInterval is how many commands go out between unsolicited map
// descriptor updates.
const DefaultMDFInterval = 60

// MapSource returns the map to describe in [b] updates.
type MapSource func() arena.Snapshot

// Link drives a robot over a serialmux link. It implements robot.BatchDriver,
// robot.Notifier and sensing.ReadingSource.
type Link struct {
	mux   serialmux.SerialMuxInterface
	subID string
	lines chan string

	mapSource   MapSource
	mdfInterval int
	readTimeout time.Duration

	mu   sync.Mutex
	sent int
}

// Option configures a Link.
type Option func(*Link)

// WithMDFInterval sets how many commands are sent between descriptor updates.
func WithMDFInterval(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.mdfInterval = n
		}
	}
}

// WithMapSource sets the map described in [b] updates. Without one no
// descriptors are sent.
func WithMapSource(src MapSource) Option {
	return func(l *Link) { l.mapSource = src }
}

// WithReadTimeout bounds how long NextReading and NextCommand wait for a line.
// Zero waits until the context is done.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Link) { l.readTimeout = d }
}

// New subscribes to mux. Monitor must be running for lines to arrive.
func New(mux serialmux.SerialMuxInterface, opts ...Option) *Link {
	l := &Link{
		mux:         mux,
		mdfInterval: DefaultMDFInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.subID, l.lines = mux.Subscribe()
	return l
}

// Close unsubscribes from the link. The link itself is left open.
func (l *Link) Close() {
	l.mux.Unsubscribe(l.subID)
}

// Drive sends a single primitive.
func (l *Link) Drive(ctx context.Context, p robot.Primitive) error {
	return l.DriveAll(ctx, []robot.Primitive{p})
}

// DriveAll sends ps as one run-length encoded command. An empty sequence is
// reported to the controller as such.
func (l *Link) DriveAll(ctx context.Context, ps []robot.Primitive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range ps {
		if !p.Valid() {
			return fmt.Errorf("%w: %q", robot.ErrInvalidPrimitive, byte(p))
		}
	}
	return l.send(MotionLine(ps), false)
}

// Notify tells the controller about a run milestone. EventExplored is always
// preceded by the final map descriptors.
func (l *Link) Notify(ctx context.Context, ev robot.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch ev {
	case robot.EventExplored:
		return l.send(motionPrefix+codeExplored, true)
	case robot.EventReturned:
		return l.send(motionPrefix+codeReturned, false)
	}
	return fmt.Errorf("robotlink: unknown event %s", ev)
}

func (l *Link) send(line string, forceMDF bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent++
	if l.mapSource != nil && (forceMDF || l.sent >= l.mdfInterval) {
		snap := l.mapSource()
		if err := l.mux.SendCommand(DescriptorLine(mdf.Encode(&snap))); err != nil {
			return fmt.Errorf("send descriptors: %w", err)
		}
		l.sent = 0
	}
	if err := l.mux.SendCommand(line); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// SendDescriptors pushes the current map descriptors immediately.
func (l *Link) SendDescriptors(snap arena.Snapshot) error {
	return l.mux.SendCommand(DescriptorLine(mdf.Encode(&snap)))
}

// NextReading waits for the next sensor frame. Operator commands and other
// lines that arrive mid-run are logged and dropped. A line that starts like a
// sensor frame but does not parse is a desync.
func (l *Link) NextReading(ctx context.Context) (sensing.Reading, error) {
	for {
		line, err := l.next(ctx)
		if err != nil {
			return sensing.Reading{}, err
		}
		if IsSensorFrame(line) {
			return ParseReading(line)
		}
		if cmd, err := ParseCommand(line); err == nil {
			monitoring.Logf("robotlink: ignoring %s during run", cmd.Kind)
			continue
		}
		monitoring.Logf("robotlink: skipping %q while waiting for sensors", line)
	}
}

// NextCommand waits for the next operator command. Stray sensor frames are
// skipped; malformed commands are returned as errors wrapping ErrBadCommand.
func (l *Link) NextCommand(ctx context.Context) (Command, error) {
	for {
		line, err := l.next(ctx)
		if err != nil {
			return Command{}, err
		}
		if IsSensorFrame(line) {
			monitoring.Debugf("robotlink: stray sensor frame %q", line)
			continue
		}
		return ParseCommand(line)
	}
}

func (l *Link) next(ctx context.Context) (string, error) {
	var timeout <-chan time.Time
	if l.readTimeout > 0 {
		t := time.NewTimer(l.readTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timeout:
		return "", fmt.Errorf("robotlink: no line within %s: %w", l.readTimeout, context.DeadlineExceeded)
	case line, ok := <-l.lines:
		if !ok {
			return "", ErrLinkClosed
		}
		return strings.TrimSpace(line), nil
	}
}
