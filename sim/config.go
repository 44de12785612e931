package sim

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"evogrid/world"
)

// Error kinds of the public simulator surface. Everything else that can go
// wrong inside the kernel is a programming error and panics.
var (
	// ErrOutOfRange is returned by Get for coordinates outside the world.
	ErrOutOfRange = errors.New("coordinates out of range")
	// ErrConfigRejected is returned for unknown config fields or values
	// outside their permitted range.
	ErrConfigRejected = errors.New("config rejected")
	// ErrBackendUnavailable is returned when the execution backend cannot
	// be initialised.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Config is the read-only block the kernel consults every tick; values are
// validated on load and on every Set call. The yaml tags are lowercase
// because viper folds every key to lowercase before the def block is
// remarshalled; Set speaks the uppercase wire names.
type Config struct {
	// World dimensions. Changing these requires a reset.
	WorldWidth  int `yaml:"world_width"`
	WorldHeight int `yaml:"world_height"`
	// Agent lifecycle caps.
	NodeMaxAge      int `yaml:"node_max_age"`
	NodeMaxEnergy   int `yaml:"node_max_energy"`
	NodeMaxMinerals int `yaml:"node_max_minerals"`
	MineralEnergy   int `yaml:"mineral_energy"`
	// Environment gradients.
	SunAmount          int `yaml:"sun_amount"`
	SunLevelHeight     int `yaml:"sun_level_height"`
	MineralAmount      int `yaml:"mineral_amount"`
	MineralLevelHeight int `yaml:"mineral_level_height"`
	// Reproduction and relatedness.
	RelativeThreshold int `yaml:"relative_threshold"`
	ReproductionCost  int `yaml:"reproduction_cost"`
	// MutationRate is an integer percentage in [0, 100].
	MutationRate int `yaml:"mutation_rate"`
	// FoodEnergy is the energy of the food left behind by a dead agent.
	FoodEnergy int `yaml:"food_energy"`
	// StartNodeNum is the number of agents seeded by a reset.
	StartNodeNum int `yaml:"start_node_num"`
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	return Config{
		WorldWidth:         300,
		WorldHeight:        150,
		NodeMaxAge:         300,
		NodeMaxEnergy:      255,
		NodeMaxMinerals:    15,
		MineralEnergy:      4,
		SunAmount:          5,
		SunLevelHeight:     10,
		MineralAmount:      5,
		MineralLevelHeight: 10,
		RelativeThreshold:  4,
		ReproductionCost:   10,
		MutationRate:       25,
		FoodEnergy:         5,
		StartNodeNum:       100,
	}
}

// Environment derives the resource gradient queries from the config.
func (cfg Config) Environment() world.Environment {
	return world.Environment{
		Height:             cfg.WorldHeight,
		SunAmount:          cfg.SunAmount,
		SunLevelHeight:     cfg.SunLevelHeight,
		MineralAmount:      cfg.MineralAmount,
		MineralLevelHeight: cfg.MineralLevelHeight,
	}
}

// Validate checks every field against its permitted range. The caps bounded
// by bit widths of the packed record are the hard limits here: a config that
// passes Validate can never produce a cell that overflows its encoding.
func (cfg Config) Validate() error {
	checks := []struct {
		name    string
		val     int
		lo, hi  int
	}{
		{"WORLD_WIDTH", cfg.WorldWidth, 1, 1 << 16},
		{"WORLD_HEIGHT", cfg.WorldHeight, 1, 1 << 16},
		{"NODE_MAX_AGE", cfg.NodeMaxAge, 0, world.MaxAge},
		{"NODE_MAX_ENERGY", cfg.NodeMaxEnergy, 1, world.MaxEnergy},
		{"NODE_MAX_MINERALS", cfg.NodeMaxMinerals, 0, world.MaxMinerals},
		{"MINERAL_ENERGY", cfg.MineralEnergy, 0, world.MaxEnergy},
		{"SUN_AMOUNT", cfg.SunAmount, 0, world.MaxEnergy},
		{"SUN_LEVEL_HEIGHT", cfg.SunLevelHeight, 1, 1 << 16},
		{"MINERAL_AMOUNT", cfg.MineralAmount, 0, world.MaxMinerals},
		{"MINERAL_LEVEL_HEIGHT", cfg.MineralLevelHeight, 1, 1 << 16},
		{"RELATIVE_THRESHOLD", cfg.RelativeThreshold, 0, world.GenomeLen},
		{"REPRODUCTION_COST", cfg.ReproductionCost, 0, world.MaxEnergy},
		{"MUTATION_RATE", cfg.MutationRate, 0, 100},
		{"FOOD_ENERGY", cfg.FoodEnergy, 0, world.MaxEnergy},
		{"START_NODE_NUM", cfg.StartNodeNum, 0, 1 << 24},
	}
	for _, c := range checks {
		if c.val < c.lo || c.val > c.hi {
			return fmt.Errorf("%w: %s=%d outside [%d, %d]",
				ErrConfigRejected, c.name, c.val, c.lo, c.hi)
		}
	}
	return nil
}

// Set updates a single recognized field by its wire name and revalidates.
// WORLD_SIZE accepts a "WxH" string and maps to both dimension fields; all
// other fields coerce the value to an int.
func (cfg *Config) Set(name string, value interface{}) error {
	if name == "WORLD_SIZE" {
		var w, h int
		s, err := cast.ToStringE(value)
		if err == nil {
			_, err = fmt.Sscanf(s, "%dx%d", &w, &h)
		}
		if err != nil {
			return fmt.Errorf("%w: WORLD_SIZE wants \"WxH\": %v", ErrConfigRejected, err)
		}
		return cfg.apply(func(c *Config) {
			c.WorldWidth, c.WorldHeight = w, h
		})
	}

	val, err := cast.ToIntE(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigRejected, name, err)
	}

	setter, ok := configSetters[name]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrConfigRejected, name)
	}
	return cfg.apply(func(c *Config) { setter(c, val) })
}

var configSetters = map[string]func(*Config, int){
	"WORLD_WIDTH":          func(c *Config, v int) { c.WorldWidth = v },
	"WORLD_HEIGHT":         func(c *Config, v int) { c.WorldHeight = v },
	"NODE_MAX_AGE":         func(c *Config, v int) { c.NodeMaxAge = v },
	"NODE_MAX_ENERGY":      func(c *Config, v int) { c.NodeMaxEnergy = v },
	"NODE_MAX_MINERALS":    func(c *Config, v int) { c.NodeMaxMinerals = v },
	"MINERAL_ENERGY":       func(c *Config, v int) { c.MineralEnergy = v },
	"SUN_AMOUNT":           func(c *Config, v int) { c.SunAmount = v },
	"SUN_LEVEL_HEIGHT":     func(c *Config, v int) { c.SunLevelHeight = v },
	"MINERAL_AMOUNT":       func(c *Config, v int) { c.MineralAmount = v },
	"MINERAL_LEVEL_HEIGHT": func(c *Config, v int) { c.MineralLevelHeight = v },
	"RELATIVE_THRESHOLD":   func(c *Config, v int) { c.RelativeThreshold = v },
	"REPRODUCTION_COST":    func(c *Config, v int) { c.ReproductionCost = v },
	"MUTATION_RATE":        func(c *Config, v int) { c.MutationRate = v },
	"FOOD_ENERGY":          func(c *Config, v int) { c.FoodEnergy = v },
	"START_NODE_NUM":       func(c *Config, v int) { c.StartNodeNum = v },
}

// apply runs the mutation on a scratch copy first so a rejected value never
// leaves a half-updated config behind.
func (cfg *Config) apply(mutate func(*Config)) error {
	trial := *cfg
	mutate(&trial)
	if err := trial.Validate(); err != nil {
		return err
	}
	*cfg = trial
	return nil
}

type outerConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// FromYaml loads a config document of the form {kind: ..., def: {...}}.
// Fields absent from the file keep their defaults.
func FromYaml(path string) (Config, error) {
	cfg := DefaultConfig()

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	outer := &outerConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	def, err := yaml.Marshal(outer.Def)
	if err != nil {
		return cfg, fmt.Errorf("remarshal config def: %w", err)
	}
	if err := yaml.Unmarshal(def, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config def: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
