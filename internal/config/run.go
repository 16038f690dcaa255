package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/maze.explorer/internal/arena"
	"github.com/banshee-data/maze.explorer/internal/planner"
	"github.com/banshee-data/maze.explorer/internal/serialmux"
)

// ErrInvalidConfig is returned for configuration values that fail validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

const maxFileSize = 1 << 20

//go:embed run.defaults.json
var defaultsJSON []byte

// Cell is a grid coordinate in a configuration file.
type Cell struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Position converts the cell to an arena position.
func (c Cell) Position() arena.Position { return arena.Position{Row: c.Row, Col: c.Col} }

// StartConfig is where and how the robot is placed for a run.
type StartConfig struct {
	Cell    `yaml:",inline"`
	Heading string `json:"heading,omitempty" yaml:"heading,omitempty"`
}

// LinkConfig selects how the controller is reached: a serial device or a TCP
// bridge. At most one may be set.
type LinkConfig struct {
	Serial string                `json:"serial,omitempty" yaml:"serial,omitempty"`
	Port   serialmux.PortOptions `json:"port" yaml:"port"`
	TCP    string                `json:"tcp,omitempty" yaml:"tcp,omitempty"`
}

// RunConfig is the run configuration. Every field is optional; the Get*
// methods supply defaults for anything left out, so partial files are safe.
type RunConfig struct {
	// Exploration
	TimeLimit      *string      `json:"time_limit,omitempty" yaml:"time_limit,omitempty"` // duration string like "6m"
	CoverageTarget *float64     `json:"coverage_target,omitempty" yaml:"coverage_target,omitempty"`
	Start          *StartConfig `json:"start,omitempty" yaml:"start,omitempty"`
	ReturnHeading  *string      `json:"return_heading,omitempty" yaml:"return_heading,omitempty"`
	StepDelay      *string      `json:"step_delay,omitempty" yaml:"step_delay,omitempty"`

	// Fastest path
	Goal     *Cell   `json:"goal,omitempty" yaml:"goal,omitempty"`
	WayPoint *Cell   `json:"waypoint,omitempty" yaml:"waypoint,omitempty"`
	Policy   *string `json:"policy,omitempty" yaml:"policy,omitempty"`

	// Files
	TruthMap  *string `json:"truth_map,omitempty" yaml:"truth_map,omitempty"`
	OutputMap *string `json:"output_map,omitempty" yaml:"output_map,omitempty"`
	DataDir   *string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Database  *string `json:"database,omitempty" yaml:"database,omitempty"`
	PlotDir   *string `json:"plot_dir,omitempty" yaml:"plot_dir,omitempty"`

	// Robot link
	Link        *LinkConfig `json:"link,omitempty" yaml:"link,omitempty"`
	MDFInterval *int        `json:"mdf_interval,omitempty" yaml:"mdf_interval,omitempty"`

	// Servers
	Listen     *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	GRPCListen *string `json:"grpc_listen,omitempty" yaml:"grpc_listen,omitempty"`
}

// DefaultRunConfig returns the embedded defaults.
func DefaultRunConfig() *RunConfig {
	return MustLoadDefaultConfig()
}

// MustLoadDefaultConfig parses the embedded defaults file. It panics if the
// file is broken, which only a bad build can cause.
func MustLoadDefaultConfig() *RunConfig {
	cfg, err := Parse(defaultsJSON, ".json")
	if err != nil {
		panic("config: embedded defaults: " + err.Error())
	}
	return cfg
}

// Load reads a run configuration from a .json, .yaml or .yml file. The file
// must be under 1 MiB.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, ext)
}

// Parse decodes data in the format named by ext and validates it.
func Parse(data []byte, ext string) (*RunConfig, error) {
	cfg := &RunConfig{}
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks every field that is set.
func (c *RunConfig) Validate() error {
	if err := validDuration("time_limit", c.TimeLimit); err != nil {
		return err
	}
	if err := validDuration("step_delay", c.StepDelay); err != nil {
		return err
	}
	if c.CoverageTarget != nil && (*c.CoverageTarget < 0 || *c.CoverageTarget > 1) {
		return invalid("coverage_target must be between 0 and 1, got %g", *c.CoverageTarget)
	}

	if c.Start != nil {
		if !c.Start.Position().InBounds() {
			return invalid("start %v is off the grid", c.Start.Position())
		}
		if c.Start.Heading != "" {
			if _, err := arena.ParseHeading(c.Start.Heading); err != nil {
				return invalid("start heading: %v", err)
			}
		}
	}
	if c.ReturnHeading != nil {
		if _, err := arena.ParseHeading(*c.ReturnHeading); err != nil {
			return invalid("return_heading: %v", err)
		}
	}
	if c.Goal != nil && !c.Goal.Position().InBounds() {
		return invalid("goal %v is off the grid", c.Goal.Position())
	}
	if c.WayPoint != nil && !c.WayPoint.Position().InBounds() {
		return invalid("waypoint %v is off the grid", c.WayPoint.Position())
	}
	if c.Policy != nil {
		if _, err := planner.PolicyByName(*c.Policy); err != nil {
			return invalid("policy: %v", err)
		}
	}

	if c.MDFInterval != nil && *c.MDFInterval < 1 {
		return invalid("mdf_interval must be at least 1, got %d", *c.MDFInterval)
	}
	if l := c.Link; l != nil {
		if l.Serial != "" && l.TCP != "" {
			return invalid("link: set either serial or tcp, not both")
		}
		if _, err := l.Port.Normalise(); err != nil {
			return invalid("link port: %v", err)
		}
	}
	return nil
}

func validDuration(name string, s *string) error {
	if s == nil || *s == "" {
		return nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return invalid("%s %q: %v", name, *s, err)
	}
	if d < 0 {
		return invalid("%s must not be negative, got %s", name, d)
	}
	return nil
}

func duration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

func str(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// GetTimeLimit returns the exploration time limit. Zero means no limit.
func (c *RunConfig) GetTimeLimit() time.Duration { return duration(c.TimeLimit, 6*time.Minute) }

// GetStepDelay returns the pause between simulated primitives.
func (c *RunConfig) GetStepDelay() time.Duration { return duration(c.StepDelay, 0) }

// GetCoverageTarget returns the coverage ratio that ends exploration early.
func (c *RunConfig) GetCoverageTarget() float64 {
	if c.CoverageTarget == nil {
		return 1.0
	}
	return *c.CoverageTarget
}

// GetStart returns the start pose. The default is the start zone facing NORTH.
func (c *RunConfig) GetStart() arena.Pose {
	pose := arena.Pose{Pos: arena.Start, Heading: arena.North}
	if c.Start == nil {
		return pose
	}
	pose.Pos = c.Start.Position()
	if h, err := arena.ParseHeading(c.Start.Heading); err == nil {
		pose.Heading = h
	}
	return pose
}

// GetReturnHeading returns the heading the robot finishes exploration in.
func (c *RunConfig) GetReturnHeading() arena.Heading {
	if c.ReturnHeading == nil {
		return arena.West
	}
	h, err := arena.ParseHeading(*c.ReturnHeading)
	if err != nil {
		return arena.West
	}
	return h
}

// GetGoal returns the fastest path goal.
func (c *RunConfig) GetGoal() arena.Position {
	if c.Goal == nil {
		return arena.Goal
	}
	return c.Goal.Position()
}

// GetWayPoint returns the fastest path waypoint, or nil for none.
func (c *RunConfig) GetWayPoint() *arena.Position {
	if c.WayPoint == nil {
		return nil
	}
	p := c.WayPoint.Position()
	return &p
}

// GetPolicy returns the planner cost policy.
func (c *RunConfig) GetPolicy() planner.Policy {
	p, err := planner.PolicyByName(str(c.Policy, ""))
	if err != nil {
		return planner.Legacy
	}
	return p
}

// GetTruthMap returns the ground truth map file for simulation.
func (c *RunConfig) GetTruthMap() string { return str(c.TruthMap, "") }

// GetDataDir returns the directory holding maps, plots and the database.
func (c *RunConfig) GetDataDir() string { return str(c.DataDir, "data") }

// GetOutputMap returns where the explored map is written.
func (c *RunConfig) GetOutputMap() string {
	return str(c.OutputMap, filepath.Join(c.GetDataDir(), "explored.txt"))
}

// GetDatabase returns the run database path.
func (c *RunConfig) GetDatabase() string {
	return str(c.Database, filepath.Join(c.GetDataDir(), "runs.db"))
}

// GetPlotDir returns the directory plots are written to.
func (c *RunConfig) GetPlotDir() string {
	return str(c.PlotDir, filepath.Join(c.GetDataDir(), "plots"))
}

// GetLink returns the controller link settings.
func (c *RunConfig) GetLink() LinkConfig {
	if c.Link == nil {
		return LinkConfig{}
	}
	return *c.Link
}

// GetMDFInterval returns how many link lines pass between descriptor resends.
func (c *RunConfig) GetMDFInterval() int {
	if c.MDFInterval == nil {
		return 60
	}
	return *c.MDFInterval
}

// GetListen returns the dashboard listen address. Empty disables it.
func (c *RunConfig) GetListen() string { return str(c.Listen, "") }

// GetGRPCListen returns the telemetry gRPC listen address. Empty disables it.
func (c *RunConfig) GetGRPCListen() string { return str(c.GRPCListen, "") }
