package misc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig selects the log level and outputs. An empty File disables the
// rotated file output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	Encoding   string `yaml:"encoding"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// BackendConfig names a backend and the parameter record it is built from.
type BackendConfig struct {
	Model  string            `yaml:"model"`
	Params map[string]string `yaml:"params"`
}

// FootprintConfig is a partition's placement on the package, in metres.
type FootprintConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Length float64 `yaml:"length"`
	Layer  int     `yaml:"layer"`
}

type PackageConfig struct {
	Name       string        `yaml:"name"`
	Partitions []string      `yaml:"partitions"`
	Thermal    BackendConfig `yaml:"thermal"`
	Window     int           `yaml:"window"`
}

type PartitionConfig struct {
	Name        string           `yaml:"name"`
	Package     string           `yaml:"package"`
	Modules     []string         `yaml:"modules"`
	Footprint   *FootprintConfig `yaml:"footprint"`
	Reliability BackendConfig    `yaml:"reliability"`
	Temperature float64          `yaml:"temperature"`
	Window      int              `yaml:"window"`
}

type ModuleConfig struct {
	Name      string        `yaml:"name"`
	Partition string        `yaml:"partition"`
	Energy    BackendConfig `yaml:"energy"`
	Window    int           `yaml:"window"`
}

// SensorConfig observes one scalar metric of one entity.
type SensorConfig struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Instance string            `yaml:"instance"`
	Metric   string            `yaml:"metric"`
	Model    string            `yaml:"model"`
	Params   map[string]string `yaml:"params"`
	Window   int               `yaml:"window"`
}

// Config is the whole system description. Technology holds the defaults
// merged under every backend's parameter record.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Technology map[string]string `yaml:"technology"`
	Packages   []PackageConfig   `yaml:"packages"`
	Partitions []PartitionConfig `yaml:"partitions"`
	Modules    []ModuleConfig    `yaml:"modules"`
	Sensors    []SensorConfig    `yaml:"sensors"`
}

// DefaultConfig returns an empty system with console logging at info level.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			Encoding:   "console",
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Technology: map[string]string{
			"window":      "1",
			"temperature": "300",
		},
	}
}

// LoadConfig parses a YAML document over DefaultConfig. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func LoadConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	technology := cfg.Technology
	cfg.Technology = nil

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for key, value := range technology {
		if _, ok := cfg.Technology[key]; !ok {
			if cfg.Technology == nil {
				cfg.Technology = make(map[string]string, len(technology))
			}
			cfg.Technology[key] = value
		}
	}
	return cfg, nil
}

// LoadConfigFile reads and parses the YAML file at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadConfig(data)
}

type ConfigLoader struct {
	config_filepath string
	config          *Config
}

// Init resolves config_filepath against root_dirpath and loads it. Like the
// command line validator it panics on a file that cannot be used.
func (this *ConfigLoader) Init(command_line_parser *CommandLineParser) {
	root_dirpath := command_line_parser.StringParameter("root_dirpath")
	this.config_filepath = ResolveConfigPath(command_line_parser.StringParameter("config_filepath"), root_dirpath)

	config, err := LoadConfigFile(this.config_filepath)
	if err != nil {
		panic(err)
	}
	this.config = config
}

func (this *ConfigLoader) ConfigFilepath() string {
	return this.config_filepath
}

func (this *ConfigLoader) Config() *Config {
	return this.config
}

// ResolveConfigPath looks for a relative path under rootDir and each of its
// parents, then the working directory. The absolute form of the first existing
// candidate wins; otherwise the path is returned made absolute.
func ResolveConfigPath(configPath, rootDir string) string {
	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		return ""
	}

	if filepath.IsAbs(configPath) {
		return filepath.Clean(configPath)
	}

	candidates := make([]string, 0, 8)

	if root := strings.TrimSpace(rootDir); root != "" {
		base := filepath.Clean(root)
		for {
			candidates = append(candidates, filepath.Join(base, configPath))
			parent := filepath.Dir(base)
			if parent == base {
				break
			}
			base = parent
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, configPath))
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		cleaned := filepath.Clean(candidate)
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		if info, err := os.Stat(cleaned); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(cleaned); err == nil {
				return abs
			}
			return cleaned
		}
	}

	if abs, err := filepath.Abs(configPath); err == nil {
		return abs
	}
	return configPath
}
