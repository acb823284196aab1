package squad

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/geo"
	"github.com/picogrid/squad-sim/pkg/reporting"
	"github.com/picogrid/squad-sim/pkg/roster"
	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/telemetry"
	"github.com/picogrid/squad-sim/pkg/video"
)

// Config holds the complete squad configuration
type Config struct {
	// Squad composition
	Squad SquadConfig `yaml:"squad"`

	// Position model
	Motion MotionConfig `yaml:"motion"`

	// What each entity publishes and how often
	Publish PublishConfig `yaml:"publish"`

	// Run length and shutdown
	Run RunConfig `yaml:"run"`

	// Status API, metrics and reports
	Observability ObservabilityConfig `yaml:"observability"`
}

// SquadConfig describes the generated roster
type SquadConfig struct {
	Count    int      `yaml:"count"`
	Kinds    []string `yaml:"kinds"`
	Seed     int64    `yaml:"seed"` // 0 picks a time based seed
	Scatter  float64  `yaml:"scatter"`
	VideoDir string   `yaml:"video_dir"`
}

// MotionConfig parameterises the position model
type MotionConfig struct {
	Base        geo.Position       `yaml:"base"`
	Step        float64            `yaml:"step"`
	Radius      float64            `yaml:"radius"`
	Multipliers map[string]float64 `yaml:"multipliers"`
}

// PublishConfig holds the media and telemetry settings
type PublishConfig struct {
	Rate     float64 `yaml:"rate"` // Ticks per second
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	Codec    string  `yaml:"codec"`
	Topic    string  `yaml:"topic"`
	Reliable bool    `yaml:"reliable"`
}

// RunConfig bounds the run
type RunConfig struct {
	Duration          time.Duration `yaml:"duration"` // 0 runs until interrupted
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout"`
}

// ObservabilityConfig configures the optional outputs
type ObservabilityConfig struct {
	StatusAddr      string        `yaml:"status_addr"`
	Metrics         bool          `yaml:"metrics"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	Report          bool          `yaml:"report"`
	ReportDir       string        `yaml:"report_dir"`
	ReportFormat    string        `yaml:"report_format"`
}

// GetDefaultConfig returns the default squad configuration
func GetDefaultConfig() *Config {
	model := geo.DefaultModel()

	kinds := make([]string, len(roster.AllKinds))
	for i, k := range roster.AllKinds {
		kinds[i] = k.String()
	}

	return &Config{
		Squad: SquadConfig{
			Count:    8,
			Kinds:    kinds,
			Scatter:  roster.DefaultScatter,
			VideoDir: "Videos",
		},
		Motion: MotionConfig{
			Base:        model.Base,
			Step:        model.Step,
			Radius:      model.Radius,
			Multipliers: model.Multipliers,
		},
		Publish: PublishConfig{
			Rate:     engine.DefaultRate,
			Width:    video.DefaultWidth,
			Height:   video.DefaultHeight,
			Codec:    session.CodecH264,
			Topic:    telemetry.Topic,
			Reliable: true,
		},
		Run: RunConfig{
			DisconnectTimeout: engine.DefaultDisconnectTimeout,
		},
		Observability: ObservabilityConfig{
			MetricsInterval: 10 * time.Second,
			ReportDir:       "reports",
			ReportFormat:    reporting.FormatMarkdown,
		},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Squad.Count < 1 {
		return fmt.Errorf("squad count must be at least 1")
	}
	if len(c.Squad.Kinds) == 0 {
		return fmt.Errorf("at least one entity kind is required")
	}
	if _, err := c.ParsedKinds(); err != nil {
		return err
	}
	if c.Squad.Scatter < 0 {
		return fmt.Errorf("scatter must not be negative")
	}

	if c.Motion.Step <= 0 {
		return fmt.Errorf("step must be positive")
	}
	if c.Motion.Radius <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	if c.Squad.Scatter > c.Motion.Radius {
		return fmt.Errorf("scatter (%g) must not exceed radius (%g)", c.Squad.Scatter, c.Motion.Radius)
	}
	if c.Motion.Base.Lat < -90 || c.Motion.Base.Lat > 90 {
		return fmt.Errorf("base latitude must be between -90 and 90")
	}
	if c.Motion.Base.Long < -180 || c.Motion.Base.Long > 180 {
		return fmt.Errorf("base longitude must be between -180 and 180")
	}
	for kind, mult := range c.Motion.Multipliers {
		if mult <= 0 {
			return fmt.Errorf("multiplier for %s must be positive", kind)
		}
	}

	if c.Publish.Rate <= 0 || c.Publish.Rate > 60 {
		return fmt.Errorf("rate must be between 0 and 60 ticks per second")
	}
	if c.Publish.Width <= 0 || c.Publish.Height <= 0 {
		return fmt.Errorf("frame size must be positive")
	}
	switch c.Publish.Codec {
	case session.CodecH264, session.CodecVP8:
	default:
		return fmt.Errorf("codec must be one of: %s, %s", session.CodecH264, session.CodecVP8)
	}
	if c.Publish.Topic == "" {
		return fmt.Errorf("topic is required")
	}

	if c.Run.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if c.Run.DisconnectTimeout <= 0 {
		return fmt.Errorf("disconnect timeout must be positive")
	}

	if c.Observability.Metrics && c.Observability.MetricsInterval <= 0 {
		return fmt.Errorf("metrics interval must be positive")
	}
	if c.Observability.Report {
		rc := reporting.ReportConfig{OutputDir: c.Observability.ReportDir, Format: c.Observability.ReportFormat}
		if err := rc.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ParsedKinds returns the configured kinds as roster kinds
func (c *Config) ParsedKinds() ([]roster.Kind, error) {
	kinds := make([]roster.Kind, 0, len(c.Squad.Kinds))
	for _, s := range c.Squad.Kinds {
		k, err := roster.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Model returns the position model described by the configuration
func (c *Config) Model() *geo.Model {
	mults := make(map[string]float64, len(c.Motion.Multipliers))
	for k, v := range c.Motion.Multipliers {
		mults[k] = v
	}
	return &geo.Model{
		Base:        c.Motion.Base,
		Step:        c.Motion.Step,
		Radius:      c.Motion.Radius,
		Multipliers: mults,
	}
}

// EntityOptions returns the publish settings for room
func (c *Config) EntityOptions(room string) entity.Options {
	opts := entity.DefaultOptions(room)
	opts.Width = c.Publish.Width
	opts.Height = c.Publish.Height
	opts.Codec = c.Publish.Codec
	opts.FrameRate = c.Publish.Rate
	opts.Topic = c.Publish.Topic
	opts.Reliable = c.Publish.Reliable
	return opts
}

// AsMap flattens the configuration for reports
func (c *Config) AsMap() map[string]interface{} {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil
	}
	out := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// MergeWithEnvironment applies SQUAD_* environment overrides. Malformed
// values are ignored.
func MergeWithEnvironment(config *Config) {
	if dir := os.Getenv("SQUAD_VIDEO_DIR"); dir != "" {
		config.Squad.VideoDir = dir
	}

	if seed := os.Getenv("SQUAD_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			config.Squad.Seed = v
		}
	}

	if rate := os.Getenv("SQUAD_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil && v > 0 {
			config.Publish.Rate = v
		}
	}

	if addr := os.Getenv("SQUAD_STATUS_ADDR"); addr != "" {
		config.Observability.StatusAddr = addr
	}

	if enable := os.Getenv("SQUAD_METRICS"); enable != "" {
		if v, err := strconv.ParseBool(enable); err == nil {
			config.Observability.Metrics = v
		}
	}

	if interval := os.Getenv("SQUAD_METRICS_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			config.Observability.MetricsInterval = d
		}
	}

	if dir := os.Getenv("SQUAD_REPORT_DIR"); dir != "" {
		config.Observability.ReportDir = dir
	}
}

// MergeWithParams applies simulation parameters to the configuration
func MergeWithParams(config *Config, params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "config_file":
			// Loaded before any other override
		case "entity_count":
			config.Squad.Count, err = toInt(value)
		case "kinds":
			config.Squad.Kinds, err = toStringList(value)
		case "seed":
			var seed int
			seed, err = toInt(value)
			config.Squad.Seed = int64(seed)
		case "scatter":
			config.Squad.Scatter, err = toFloat(value)
		case "video_dir":
			config.Squad.VideoDir = fmt.Sprintf("%v", value)
		case "base_lat":
			config.Motion.Base.Lat, err = toFloat(value)
		case "base_long":
			config.Motion.Base.Long, err = toFloat(value)
		case "step":
			config.Motion.Step, err = toFloat(value)
		case "radius":
			config.Motion.Radius, err = toFloat(value)
		case "rate":
			config.Publish.Rate, err = toFloat(value)
		case "width":
			config.Publish.Width, err = toInt(value)
		case "height":
			config.Publish.Height, err = toInt(value)
		case "codec":
			config.Publish.Codec = strings.ToLower(fmt.Sprintf("%v", value))
		case "topic":
			config.Publish.Topic = fmt.Sprintf("%v", value)
		case "reliable":
			config.Publish.Reliable, err = toBool(value)
		case "duration":
			config.Run.Duration, err = toDuration(value)
		case "disconnect_timeout":
			config.Run.DisconnectTimeout, err = toDuration(value)
		case "status_addr":
			config.Observability.StatusAddr = fmt.Sprintf("%v", value)
		case "metrics":
			config.Observability.Metrics, err = toBool(value)
		case "metrics_interval":
			config.Observability.MetricsInterval, err = toDuration(value)
		case "report":
			config.Observability.Report, err = toBool(value)
		case "report_dir":
			config.Observability.ReportDir = fmt.Sprintf("%v", value)
		case "report_format":
			config.Observability.ReportFormat = strings.ToLower(fmt.Sprintf("%v", value))
		default:
			return fmt.Errorf("unknown parameter %q", key)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// ValidateAndParse builds a Config from defaults, an optional config_file,
// SQUAD_* environment overrides and finally params.
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	config := GetDefaultConfig()

	if v, ok := params["config_file"]; ok {
		if path := fmt.Sprintf("%v", v); path != "" {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	MergeWithEnvironment(config)

	if err := MergeWithParams(config, params); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func toInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
}

func toBool(v interface{}) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(val)
	default:
		return false, fmt.Errorf("must be a boolean, got %T", v)
	}
}

// toDuration accepts a time.Duration, a duration string, or a number of seconds
func toDuration(v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		return time.ParseDuration(val)
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("must be a duration, got %T", v)
	}
}

func toStringList(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = fmt.Sprintf("%v", item)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a list, got %T", v)
	}
}
