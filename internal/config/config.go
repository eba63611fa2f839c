// Package config loads the YAML run configuration, applies struct defaults
// and tag validation, and converts it into the parameters each package takes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/talgya/shark-market/internal/agents"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/expectations"
	"github.com/talgya/shark-market/internal/market"
)

var validate = validator.New()

type Config struct {
	Simulation struct {
		Quarters       int      `yaml:"quarters" default:"1" validate:"gte=0"`
		RunsPerQuarter int      `yaml:"runs_per_quarter" default:"60" validate:"gte=1"`
		DaysPerQuarter int      `yaml:"days_per_quarter" default:"60" validate:"gte=1"`
		AttentionRate  *float64 `yaml:"attention_rate" validate:"omitempty,gte=0,lte=1"` // Unset means 1/runs_per_quarter
		BurnIn         int      `yaml:"burn_in" validate:"gte=0"`
		Seed           int64    `yaml:"seed"` // 0 draws a fresh seed
		MacroPrice     string   `yaml:"macro_price" default:"cleared" validate:"oneof=cleared pre_clear"`
		DollarsPerUnit float64  `yaml:"dollars_per_unit" default:"1500" validate:"gt=0"`
	} `yaml:"simulation"`

	Market struct {
		Kind               string  `yaml:"kind" default:"mock" validate:"oneof=mock growth impact noise"`
		InitialPrice       float64 `yaml:"initial_price" default:"100" validate:"gt=0"`
		PriceDividendRatio float64 `yaml:"price_dividend_ratio" default:"1200" validate:"gt=0"`
		DailyReturn        float64 `yaml:"daily_return" default:"0.000628"`
		DailyStd           float64 `yaml:"daily_std" default:"0.011988" validate:"gte=0"`
		GrowthRate         float64 `yaml:"growth_rate" default:"0.01"`
		ImpactScale        float64 `yaml:"impact_scale" default:"0.001" validate:"gte=0"`
		MinPrice           float64 `yaml:"min_price" default:"1" validate:"gte=0"`
		MaxPrice           float64 `yaml:"max_price" default:"10000" validate:"gtfield=MinPrice"`
		MaxOrder           float64 `yaml:"max_order" default:"1e12" validate:"gt=0"`
		NoiseAmplitude     float64 `yaml:"noise_amplitude" default:"0.002" validate:"gte=0"`
		NoiseFrequency     float64 `yaml:"noise_frequency" default:"0.05" validate:"gte=0"`
	} `yaml:"market"`

	Expectations struct {
		P1      float64 `yaml:"p1" default:"0.1" validate:"gte=0,lte=1"`
		P2      float64 `yaml:"p2" default:"0.1" validate:"gte=0,lte=1"`
		Window1 int     `yaml:"delta_t1" default:"60" validate:"gte=1"`
		Window2 int     `yaml:"delta_t2" default:"60" validate:"gte=1"`
	} `yaml:"expectations"`

	Classes []agents.ClassSpec `yaml:"classes" validate:"dive"`

	Storage struct {
		Path string `yaml:"path" default:"data/shark.db"`
	} `yaml:"storage"`

	API struct {
		Port      int    `yaml:"port" default:"8080" validate:"gte=0,lte=65535"`
		AdminKey  string `yaml:"admin_key"`
		RateLimit int    `yaml:"rate_limit" default:"5" validate:"gte=1"` // simulate requests per minute per IP
	} `yaml:"api"`

	Metrics struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"auto" validate:"oneof=auto text json"`
	} `yaml:"log"`

	Output struct {
		CSV string `yaml:"csv"`
	} `yaml:"output"`

	RandomOrgKey string `yaml:"random_org_key"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var c Config
	// Defaults first so that explicit zeros in the file survive.
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SHARK_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SHARK_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("SHARK_SEED: %w", err)
		}
		c.Simulation.Seed = seed
	}
	if v := os.Getenv("SHARK_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SHARK_API_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v := os.Getenv("SHARK_ADMIN_KEY"); v != "" {
		c.API.AdminKey = v
	}
	if v := os.Getenv("RANDOM_ORG_API_KEY"); v != "" {
		c.RandomOrgKey = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.Simulation.DaysPerQuarter%c.Simulation.RunsPerQuarter != 0 {
		return fmt.Errorf("simulation.runs_per_quarter (%d) must divide simulation.days_per_quarter (%d)",
			c.Simulation.RunsPerQuarter, c.Simulation.DaysPerQuarter)
	}
	if c.Expectations.P1+c.Expectations.P2 > 1 {
		return fmt.Errorf("expectations.p1 + expectations.p2 must be <= 1, got %v",
			c.Expectations.P1+c.Expectations.P2)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// EngineConfig returns the loop parameters. seed is the resolved run seed.
func (c *Config) EngineConfig(seed int64) engine.Config {
	s := c.Simulation
	rate := 1.0 / float64(s.RunsPerQuarter)
	if s.AttentionRate != nil {
		rate = *s.AttentionRate
	}
	return engine.Config{
		Quarters:       s.Quarters,
		RunsPerQuarter: s.RunsPerQuarter,
		DaysPerQuarter: s.DaysPerQuarter,
		AttentionRate:  rate,
		BurnIn:         s.BurnIn,
		Seed:           seed,
		MacroPrice:     s.MacroPrice,
	}
}

// MarketParams returns the market construction parameters.
func (c *Config) MarketParams() market.Params {
	m := c.Market
	return market.Params{
		Kind:               m.Kind,
		InitialPrice:       m.InitialPrice,
		PriceDividendRatio: m.PriceDividendRatio,
		DailyReturn:        m.DailyReturn,
		DailyStd:           m.DailyStd,
		GrowthRate:         m.GrowthRate,
		ImpactScale:        m.ImpactScale,
		MinPrice:           m.MinPrice,
		MaxPrice:           m.MaxPrice,
		MaxOrder:           m.MaxOrder,
		NoiseAmplitude:     m.NoiseAmplitude,
		NoiseFrequency:     m.NoiseFrequency,
	}
}

// ExpectationParams returns the memory parameters, with the market's daily
// moments as the prior.
func (c *Config) ExpectationParams() expectations.Params {
	return expectations.Params{
		P1:             c.Expectations.P1,
		P2:             c.Expectations.P2,
		Window1:        c.Expectations.Window1,
		Window2:        c.Expectations.Window2,
		DaysPerQuarter: c.Simulation.DaysPerQuarter,
		PriorReturn:    c.Market.DailyReturn,
		PriorStd:       c.Market.DailyStd,
	}
}

// ClassSpecs returns the configured agent classes, or the default class.
func (c *Config) ClassSpecs() []agents.ClassSpec {
	if len(c.Classes) == 0 {
		return []agents.ClassSpec{agents.DefaultClass()}
	}
	return c.Classes
}
