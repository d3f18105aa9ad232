// Package config loads and validates SiMBA's run configuration (spec.md
// §6): a single YAML document whose top-level keys drive every other
// package. Concrete sensor/navigator/controller/physics/estimator
// plug-ins are out of scope (spec.md §1) — their per-instance
// configuration is carried as an opaque Params map and handed to the
// plug-in registry the CLI wires up, not interpreted here.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mescourrou/simba/internal/simerrors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6's top-level keys. Every field carries both a
// yaml tag (for the strict yaml.v3 unknown-field pass) and a mapstructure
// tag (for viper's decoder, which ignores yaml tags), matching
// `tabular`'s own dual-tagged config structs.
type Config struct {
	Version          string                  `yaml:"version" mapstructure:"version"`
	MaxTime          float64                 `yaml:"max_time" mapstructure:"max_time"`
	Log              LogConfig               `yaml:"log" mapstructure:"log"`
	Results          ResultsConfig           `yaml:"results" mapstructure:"results"`
	TimeAnalysis     TimeAnalysisConfig      `yaml:"time_analysis" mapstructure:"time_analysis"`
	RandomSeed       *int64                  `yaml:"random_seed" mapstructure:"random_seed"`
	Environment      EnvironmentConfig       `yaml:"environment" mapstructure:"environment"`
	Robots           []RobotConfig           `yaml:"robots" mapstructure:"robots"`
	ComputationUnits []ComputationUnitConfig `yaml:"computation_units" mapstructure:"computation_units"`
	Scenario         []ScenarioEventConfig   `yaml:"scenario" mapstructure:"scenario"`

	versionMismatch bool
}

// VersionMismatch reports whether the loaded document's version differs
// from the version this build understands (spec.md §6 "warn on
// mismatch" — non-fatal, the caller decides whether to log and continue).
func (c *Config) VersionMismatch() bool { return c.versionMismatch }

// LogConfig controls level and per-component scope filters (spec.md §6).
type LogConfig struct {
	Level string            `yaml:"level" mapstructure:"level"`
	Scope map[string]string `yaml:"scope" mapstructure:"scope"`
}

// ResultsConfig controls the record store's save mode and optional
// telemetry bridges (spec.md §4.6, §6).
type ResultsConfig struct {
	Path          string            `yaml:"path" mapstructure:"path"`
	SaveMode      string            `yaml:"save_mode" mapstructure:"save_mode"`
	BatchSize     int               `yaml:"batch_size" mapstructure:"batch_size"`
	PeriodicDelta float64           `yaml:"periodic_delta" mapstructure:"periodic_delta"`
	PostRunScript string            `yaml:"post_run_script" mapstructure:"post_run_script"`
	MQTTBridge    *MQTTBridgeConfig `yaml:"mqtt_bridge" mapstructure:"mqtt_bridge"`
	Inspector     *InspectorConfig  `yaml:"inspector" mapstructure:"inspector"`
}

// MQTTBridgeConfig configures the optional live telemetry MQTT sink
// (internal/telemetry/mqttsink).
type MQTTBridgeConfig struct {
	BrokerURL string `yaml:"broker_url" mapstructure:"broker_url"`
	ClientID  string `yaml:"client_id" mapstructure:"client_id"`
	Topic     string `yaml:"topic" mapstructure:"topic"`
}

// InspectorConfig configures the optional websocket live record stream
// (internal/inspector).
type InspectorConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// TimeAnalysisConfig controls the trace/CSV timing export (spec.md §6).
type TimeAnalysisConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Unit      string `yaml:"unit" mapstructure:"unit"`
	TracePath string `yaml:"trace_path" mapstructure:"trace_path"`
	CSVPath   string `yaml:"csv_path" mapstructure:"csv_path"`
}

// EnvironmentConfig points at the landmark map file (spec.md §6).
type EnvironmentConfig struct {
	MapPath string `yaml:"map_path" mapstructure:"map_path"`
}

// RobotConfig declares one Robot node. Type names the plug-in model the
// runtime's node factory resolves (out of scope: concrete plug-ins).
type RobotConfig struct {
	Name           string         `yaml:"name" mapstructure:"name"`
	Type           string         `yaml:"type" mapstructure:"type"`
	Range          float64        `yaml:"range" mapstructure:"range"`
	ReceptionDelay float64        `yaml:"reception_delay" mapstructure:"reception_delay"`
	Labels         []string       `yaml:"labels" mapstructure:"labels"`
	Params         map[string]any `yaml:"params" mapstructure:"params"`
}

// ComputationUnitConfig declares one ComputationUnit node.
type ComputationUnitConfig struct {
	Name   string         `yaml:"name" mapstructure:"name"`
	Type   string         `yaml:"type" mapstructure:"type"`
	Params map[string]any `yaml:"params" mapstructure:"params"`
}

// ScenarioEventConfig declares one scheduled scenario event (spec.md
// §4.5).
type ScenarioEventConfig struct {
	Name            string        `yaml:"name" mapstructure:"name"`
	TriggeringNodes []string      `yaml:"triggering_nodes" mapstructure:"triggering_nodes"`
	Trigger         TriggerConfig `yaml:"trigger" mapstructure:"trigger"`
	Type            string        `yaml:"type" mapstructure:"type"` // spawn | kill
	ModelName       string        `yaml:"model_name" mapstructure:"model_name"`
	NodeName        string        `yaml:"node_name" mapstructure:"node_name"`
	Target          string        `yaml:"target" mapstructure:"target"`
}

// TriggerConfig is the YAML shape of a Trigger; exactly one of Time,
// Proximity, Area is populated, selected by Type.
type TriggerConfig struct {
	Type      string                  `yaml:"type" mapstructure:"type"` // time | proximity | area
	Time      *TimeTriggerConfig      `yaml:"time" mapstructure:"time"`
	Proximity *ProximityTriggerConfig `yaml:"proximity" mapstructure:"proximity"`
	Area      *AreaTriggerConfig      `yaml:"area" mapstructure:"area"`
}

// TimeTriggerConfig is the YAML shape of a Time trigger.
type TimeTriggerConfig struct {
	Fixed       *float64       `yaml:"fixed" mapstructure:"fixed"`
	Random      *VarSpecConfig `yaml:"random" mapstructure:"random"`
	Occurrences int            `yaml:"occurrences" mapstructure:"occurrences"`
}

// VarSpecConfig is the YAML shape of a randgen.VarSpec.
type VarSpecConfig struct {
	Kind          string    `yaml:"kind" mapstructure:"kind"`
	Fixed         float64   `yaml:"fixed" mapstructure:"fixed"`
	UniformLow    float64   `yaml:"uniform_low" mapstructure:"uniform_low"`
	UniformHigh   float64   `yaml:"uniform_high" mapstructure:"uniform_high"`
	NormalMean    []float64 `yaml:"normal_mean" mapstructure:"normal_mean"`
	NormalCov     []float64 `yaml:"normal_cov" mapstructure:"normal_cov"`
	PoissonLambda float64   `yaml:"poisson_lambda" mapstructure:"poisson_lambda"`
	ExpRate       float64   `yaml:"exp_rate" mapstructure:"exp_rate"`
	BernoulliP    float64   `yaml:"bernoulli_p" mapstructure:"bernoulli_p"`
}

// ProximityTriggerConfig is the YAML shape of a Proximity trigger.
type ProximityTriggerConfig struct {
	ProtectedTarget string  `yaml:"protected_target" mapstructure:"protected_target"`
	Distance        float64 `yaml:"distance" mapstructure:"distance"`
	Inside          bool    `yaml:"inside" mapstructure:"inside"`
}

// AreaTriggerConfig is the YAML shape of an Area trigger.
type AreaTriggerConfig struct {
	Shape      string  `yaml:"shape" mapstructure:"shape"` // rect | circle
	CenterX    float64 `yaml:"center_x" mapstructure:"center_x"`
	CenterY    float64 `yaml:"center_y" mapstructure:"center_y"`
	HalfWidth  float64 `yaml:"half_width" mapstructure:"half_width"`
	HalfHeight float64 `yaml:"half_height" mapstructure:"half_height"`
	Radius     float64 `yaml:"radius" mapstructure:"radius"`
	Inside     bool    `yaml:"inside" mapstructure:"inside"`
}

// SchemaVersion is the version this build was written against (spec.md
// §6 "warn on mismatch" — the config package itself only records the
// mismatch; it is the caller's choice whether to treat it as fatal).
const SchemaVersion = "1.0"

// Load reads path as YAML, applying defaults via viper the way
// `tabular`'s config loader does, then re-decodes the raw bytes through
// yaml.v3 with KnownFields(true) to enforce spec.md §6's "unknown field
// is an error" rule — viper's own decoder is lenient about unknown keys,
// so the strict pass is a second, narrower decode over the same bytes
// rather than a replacement for viper's defaulting.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, simerrors.ErrConfiguration)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, simerrors.ErrConfiguration)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling %s: %w", path, simerrors.ErrConfiguration)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	strict := &Config{}
	if err := dec.Decode(strict); err != nil {
		return nil, fmt.Errorf("config: %s has an unknown field: %w: %v", path, simerrors.ErrConfiguration, err)
	}

	if cfg.Version != "" && cfg.Version != SchemaVersion {
		cfg.versionMismatch = true
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("results.save_mode", "at_end")
	v.SetDefault("results.batch_size", 100)
	v.SetDefault("time_analysis.enabled", false)
	v.SetDefault("time_analysis.unit", "ms")
}
