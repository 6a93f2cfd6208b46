package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds training configuration. The layer size schedule is not stored
// with the weights, so InputDim and Classes are recorded here to rebuild it.
type Config struct {
	Name             string  `yaml:"name"`
	InputDim         int     `yaml:"input_dim,omitempty"`
	HiddenLayerSizes []int   `yaml:"hidden_layer_sizes"`
	Classes          []int   `yaml:"classes,omitempty"`
	Alpha            float64 `yaml:"alpha"`
	Lambda           float64 `yaml:"lambda"`
	Epochs           int     `yaml:"epochs"`
	NumBatches       int     `yaml:"num_batches"`
	Seed             uint64  `yaml:"seed"`
	Verbose          bool    `yaml:"verbose"`
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
		Name:             "mlp",
		HiddenLayerSizes: []int{100},
		Alpha:            0.0001,
		Lambda:           1,
		Epochs:           10,
		NumBatches:       100,
		Seed:             1,
	}
}

// ParseConfig decodes YAML over DefaultConfig, so omitted keys keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &config, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// SaveConfig writes config as YAML.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ParseArchitecture parses hidden layer sizes separated by spaces or commas.
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	for i, n := range config.HiddenLayerSizes {
		if n <= 0 {
			return fmt.Errorf("hidden layer %d must have a positive size, got %d", i, n)
		}
	}

	if config.Alpha <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Lambda < 0 {
		return fmt.Errorf("regularization strength must not be negative")
	}

	if config.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}

	if config.NumBatches <= 0 {
		return fmt.Errorf("number of batches must be positive")
	}

	return nil
}

// LayerSizes returns [InputDim] + HiddenLayerSizes + [len(Classes)].
func (c *Config) LayerSizes() ([]int, error) {
	if c.InputDim <= 0 {
		return nil, fmt.Errorf("config %q has no input dimension", c.Name)
	}
	if len(c.Classes) == 0 {
		return nil, fmt.Errorf("config %q has no classes", c.Name)
	}
	sizes := make([]int, 0, len(c.HiddenLayerSizes)+2)
	sizes = append(sizes, c.InputDim)
	sizes = append(sizes, c.HiddenLayerSizes...)
	return append(sizes, len(c.Classes)), nil
}
