package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/internal/predict"
	"github.com/lkarlslund/aircv/internal/resize"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/smartcrop"
)

// Strategy names accepted in Config.Strategies.
const (
	StrategyTemplate   = "tpl"
	StrategyPredicted  = "tplpre"
	StrategyMultiScale = "mstpl"
)

// Config holds the matcher settings. It is a plain value: the engine copies
// it at construction and nothing changes it afterwards.
type Config struct {
	Debug bool `json:"debug"`

	Threshold        float64             `json:"threshold"`
	DesignResolution geometry.Resolution `json:"design_resolution"`
	ResizeStrategy   string              `json:"resize_strategy"`

	// Region prediction
	RadiusX             int  `json:"radius_x"`
	RadiusY             int  `json:"radius_y"`
	SymmetricPrediction bool `json:"symmetric_prediction"`

	// Multi-scale search
	ScaleMax  int     `json:"scale_max"`
	ScaleStep float64 `json:"scale_step"`

	// Strategies are tried in order until one finds the template.
	Strategies []string `json:"strategies"`
	MaxResults int      `json:"max_results"`
	// StrictColor forces the HSV color check for every template.
	StrictColor bool `json:"strict_color"`

	SmartCrop smartcrop.Options `json:"smart_crop"`
}

// Default returns a Config populated with standard defaults.
func Default() Config {
	return Config{
		Threshold:        match.DefaultThreshold,
		DesignResolution: resize.DefaultDesign(),
		ResizeStrategy:   "min_fit",
		RadiusX:          predict.DefaultRadiusX,
		RadiusY:          predict.DefaultRadiusY,
		ScaleMax:         match.DefaultScaleMax,
		ScaleStep:        match.DefaultScaleStep,
		Strategies:       []string{StrategyPredicted, StrategyTemplate},
		MaxResults:       match.MaxResultCount,
		SmartCrop:        smartcrop.DefaultOptions(),
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0,1]", c.Threshold)
	}
	if c.DesignResolution.Width < 0 || c.DesignResolution.Height < 0 {
		return fmt.Errorf("negative design resolution %v", c.DesignResolution)
	}
	if _, err := resize.ByName(c.ResizeStrategy); err != nil {
		return err
	}
	if c.RadiusX <= 0 || c.RadiusY <= 0 {
		return fmt.Errorf("prediction radius %dx%d must be positive", c.RadiusX, c.RadiusY)
	}
	if c.ScaleMax <= 0 {
		return fmt.Errorf("scale_max %d must be positive", c.ScaleMax)
	}
	if c.ScaleStep <= 0 || c.ScaleStep >= 1 {
		return fmt.Errorf("scale_step %v outside (0,1)", c.ScaleStep)
	}
	if len(c.Strategies) == 0 {
		return errors.New("no match strategies configured")
	}
	for _, s := range c.Strategies {
		if s != StrategyTemplate && s != StrategyPredicted && s != StrategyMultiScale {
			return fmt.Errorf("unknown match strategy %q", s)
		}
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results %d is negative", c.MaxResults)
	}
	if err := c.SmartCrop.Validate(); err != nil {
		return fmt.Errorf("smart_crop: %w", err)
	}
	return nil
}

// Load reads configuration from a JSON file on top of the defaults. A
// missing file yields the defaults. On a decoding error it returns the
// defaults together with the error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	loaded := Default()
	if err := json.NewDecoder(f).Decode(&loaded); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := loaded.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return loaded, nil
}

// Save writes the configuration to path as indented JSON.
func (c Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
