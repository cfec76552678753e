package config

import (
	"fmt"
	"os"

	"github.com/arup-group/genet-sub002/pkg/geo"
	"github.com/arup-group/genet-sub002/pkg/spatial"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort      = 5000
	defaultStorePath = "./genet_db"
)

type ServerConfig struct {
	Port      int    `yaml:"port" validate:"gt=0,lte=65535"`
	StorePath string `yaml:"storePath" validate:"required"`
}

// CatchmentConfig drives stop to link access assignment. Distances are in metres.
type CatchmentConfig struct {
	StepSize          float64  `yaml:"stepSize" validate:"gte=0.000001"`
	DistanceThreshold *float64 `yaml:"distanceThreshold" validate:"omitempty,gt=0"`
	InitialDistance   float64  `yaml:"initialDistance" validate:"gte=0"`
	Modes             []string `yaml:"modes" validate:"required,min=1,dive,required"`
	// ServedStopsOnly limits a mode's search to stops called at by routes of that mode.
	ServedStopsOnly bool `yaml:"servedStopsOnly"`
}

// SearchConfig converts the catchment settings for one mode.
func (c CatchmentConfig) SearchConfig(mode string) spatial.SearchConfig {
	return spatial.SearchConfig{
		InitialDistance:   c.InitialDistance,
		StepSize:          c.StepSize,
		DistanceThreshold: c.DistanceThreshold,
		Modes:             []string{mode},
	}
}

// Defaults is the search used for catchment requests that leave settings out.
func (c CatchmentConfig) Defaults() spatial.SearchConfig {
	sc := spatial.SearchConfig{
		InitialDistance: c.InitialDistance,
		StepSize:        c.StepSize,
		Modes:           append([]string(nil), c.Modes...),
	}
	if c.DistanceThreshold != nil {
		threshold := *c.DistanceThreshold
		sc.DistanceThreshold = &threshold
	}
	return sc
}

type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Catchment CatchmentConfig `yaml:"catchment"`
	CRS       string          `yaml:"crs"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse decodes a yaml configuration, fills defaults and validates it.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()

	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return AppConfig{}, err
	}
	if err := v.Struct(cfg.Catchment); err != nil {
		return AppConfig{}, err
	}
	if _, err := geo.NewTransformer(cfg.CRS); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.StorePath == "" {
		c.Server.StorePath = defaultStorePath
	}
	c.CRS = geo.NormalizeCRS(c.CRS)
	if c.Catchment.InitialDistance == 0 {
		c.Catchment.InitialDistance = c.Catchment.StepSize
	}
}
