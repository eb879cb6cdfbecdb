package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Version is the narrcnn release version.
const Version = "0.3.0"

// DefaultFilters is the punctuation removed from narratives before splitting.
const DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// Config holds all narrcnn configuration.
type Config struct {
	Data   DataConfig    `yaml:"data"`
	Prep   PrepConfig    `yaml:"prep"`
	Train  TrainConfig   `yaml:"train"`
	Models []ModelConfig `yaml:"models"`
	Output OutputConfig  `yaml:"output"`
	Log    LogConfig     `yaml:"log"`
}

// DataConfig locates the pre-split narrative tables.
type DataConfig struct {
	TrainPath string `yaml:"train_path"`
	ValidPath string `yaml:"valid_path"`
	Format    string `yaml:"format"`          // "" detects from the file extension
	Token     string `yaml:"token,omitempty"` // Bearer token for http(s) paths
}

// PrepConfig controls tokenization and padding.
type PrepConfig struct {
	MaxLen      int    `yaml:"max_len"`
	NumWords    int    `yaml:"num_words"` // 0 keeps the whole vocabulary
	OOVToken    string `yaml:"oov_token"`
	Lowercase   bool   `yaml:"lowercase"`
	FoldAccents bool   `yaml:"fold_accents"`
	Filters     string `yaml:"filters"`
}

// TrainConfig holds the optimisation settings shared by every model.
type TrainConfig struct {
	Epochs              int     `yaml:"epochs"`
	BatchSize           int     `yaml:"batch_size"`
	LearningRate        float64 `yaml:"learning_rate"`
	Seed                uint64  `yaml:"seed"`
	Workers             int     `yaml:"workers"` // 0 uses GOMAXPROCS
	Shuffle             bool    `yaml:"shuffle"`
	LazyAdam            bool    `yaml:"lazy_adam"` // update only embedding rows seen in the batch
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// ModelConfig describes one convolutional architecture. A single kernel size
// yields the single-width model; several yield parallel branches whose pooled
// outputs are concatenated.
type ModelConfig struct {
	Name             string  `yaml:"name"`
	EmbeddingDim     int     `yaml:"embedding_dim"`
	EmbeddingDropout float64 `yaml:"embedding_dropout"`
	KernelSizes      []int   `yaml:"kernel_sizes"`
	Filters          int     `yaml:"filters"`
	PooledDropout    float64 `yaml:"pooled_dropout"` // applied to the concatenated pool output, 0 disables
	Hidden           int     `yaml:"hidden"`
	HiddenDropout    float64 `yaml:"hidden_dropout"`
}

// OutputConfig selects where epoch reports are written.
type OutputConfig struct {
	Stdout     bool   `yaml:"stdout"`
	FilePath   string `yaml:"file_path"`
	WebhookURL string `yaml:"webhook_url"`
	Pretty     bool   `yaml:"pretty"`
	Verbosity  string `yaml:"verbosity"` // "minimal", "standard", "full"
	Async      bool   `yaml:"async"`

	FileMaxSize      string            `yaml:"file_max_size"` // e.g. "10MB"; "" disables rotation
	FileMaxBackups   int               `yaml:"file_max_backups"`
	WebhookHeaders   map[string]string `yaml:"webhook_headers,omitempty"`
	WebhookBatchSize int               `yaml:"webhook_batch_size"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// SingleWidth is the single convolution width architecture.
func SingleWidth() ModelConfig {
	return ModelConfig{
		Name:             "single",
		EmbeddingDim:     300,
		EmbeddingDropout: 0.1,
		KernelSizes:      []int{3},
		Filters:          100,
		Hidden:           100,
		HiddenDropout:    0.5,
	}
}

// MultiWidth is the four-branch architecture with kernel widths 2 through 5.
func MultiWidth() ModelConfig {
	return ModelConfig{
		Name:             "multi",
		EmbeddingDim:     300,
		EmbeddingDropout: 0.1,
		KernelSizes:      []int{2, 3, 4, 5},
		Filters:          20,
		PooledDropout:    0.5,
		Hidden:           100,
		HiddenDropout:    0.5,
	}
}

// Preset returns a named built-in architecture.
func Preset(name string) (ModelConfig, bool) {
	switch name {
	case "single":
		return SingleWidth(), true
	case "multi":
		return MultiWidth(), true
	}
	return ModelConfig{}, false
}

// DefaultConfig returns the configuration of the reference experiment.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			TrainPath: "data/train.csv",
			ValidPath: "data/valid.csv",
		},
		Prep: PrepConfig{
			MaxLen:      200,
			Lowercase:   true,
			FoldAccents: true,
			Filters:     DefaultFilters,
		},
		Train: TrainConfig{
			Epochs:       5,
			BatchSize:    32,
			LearningRate: 0.001,
			Seed:         7,
			Shuffle:      true,
		},
		Models: []ModelConfig{SingleWidth(), MultiWidth()},
		Output: OutputConfig{
			Stdout:           true,
			Verbosity:        "standard",
			FileMaxBackups:   9,
			WebhookBatchSize: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file on top of the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	c.Data.TrainPath = getenv("NARRCNN_TRAIN_PATH", c.Data.TrainPath)
	c.Data.ValidPath = getenv("NARRCNN_VALID_PATH", c.Data.ValidPath)
	c.Data.Format = getenv("NARRCNN_FORMAT", c.Data.Format)
	c.Data.Token = getenv("NARRCNN_DATA_TOKEN", c.Data.Token)

	c.Prep.MaxLen = getenvInt("NARRCNN_MAX_LEN", c.Prep.MaxLen)
	c.Prep.NumWords = getenvInt("NARRCNN_NUM_WORDS", c.Prep.NumWords)
	c.Prep.OOVToken = getenv("NARRCNN_OOV_TOKEN", c.Prep.OOVToken)

	c.Train.Epochs = getenvInt("NARRCNN_EPOCHS", c.Train.Epochs)
	c.Train.BatchSize = getenvInt("NARRCNN_BATCH_SIZE", c.Train.BatchSize)
	c.Train.LearningRate = getenvFloat("NARRCNN_LEARNING_RATE", c.Train.LearningRate)
	seed, err := getenvUint64("NARRCNN_SEED", c.Train.Seed)
	if err != nil {
		return fmt.Errorf("config: NARRCNN_SEED: %w", err)
	}
	c.Train.Seed = seed
	c.Train.Workers = getenvInt("NARRCNN_WORKERS", c.Train.Workers)
	c.Train.LazyAdam = getenvBool("NARRCNN_LAZY_ADAM", c.Train.LazyAdam)
	c.Train.ConfidenceThreshold = getenvFloat("NARRCNN_CONFIDENCE_THRESHOLD", c.Train.ConfidenceThreshold)

	c.Output.Stdout = getenvBool("NARRCNN_OUTPUT_STDOUT", c.Output.Stdout)
	c.Output.FilePath = getenv("NARRCNN_OUTPUT_FILE", c.Output.FilePath)
	c.Output.WebhookURL = getenv("NARRCNN_WEBHOOK_URL", c.Output.WebhookURL)
	c.Output.Pretty = getenvBool("NARRCNN_OUTPUT_PRETTY", c.Output.Pretty)
	c.Output.Verbosity = getenv("NARRCNN_VERBOSITY", c.Output.Verbosity)
	c.Output.FileMaxSize = getenv("NARRCNN_OUTPUT_MAX_SIZE", c.Output.FileMaxSize)
	c.Output.FileMaxBackups = getenvInt("NARRCNN_OUTPUT_MAX_BACKUPS", c.Output.FileMaxBackups)
	c.Output.WebhookBatchSize = getenvInt("NARRCNN_WEBHOOK_BATCH_SIZE", c.Output.WebhookBatchSize)
	// NARRCNN_WEBHOOK_HEADERS is "Name=value,Other=value".
	if v := os.Getenv("NARRCNN_WEBHOOK_HEADERS"); v != "" {
		headers, err := parseHeaders(v)
		if err != nil {
			return fmt.Errorf("config: NARRCNN_WEBHOOK_HEADERS: %w", err)
		}
		c.Output.WebhookHeaders = headers
	}

	c.Log.Level = getenv("NARRCNN_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("NARRCNN_LOG_FORMAT", c.Log.Format)

	// NARRCNN_MODELS selects built-in architectures by name, e.g. "multi".
	if v := os.Getenv("NARRCNN_MODELS"); v != "" {
		var models []ModelConfig
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			m, ok := Preset(name)
			if !ok {
				return fmt.Errorf("config: NARRCNN_MODELS: unknown model %q", name)
			}
			models = append(models, m)
		}
		c.Models = models
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Data.TrainPath == "" {
		errs = append(errs, errors.New("NARRCNN_TRAIN_PATH: training table path is required"))
	}
	if c.Data.ValidPath == "" {
		errs = append(errs, errors.New("NARRCNN_VALID_PATH: validation table path is required"))
	}
	if c.Prep.MaxLen <= 0 {
		errs = append(errs, fmt.Errorf("max_len must be positive, got %d", c.Prep.MaxLen))
	}
	if c.Prep.NumWords < 0 {
		errs = append(errs, fmt.Errorf("num_words must not be negative, got %d", c.Prep.NumWords))
	}
	if c.Train.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", c.Train.Epochs))
	}
	if c.Train.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.Train.BatchSize))
	}
	if c.Train.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %g", c.Train.LearningRate))
	}
	if c.Train.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Train.Workers))
	}
	if c.Train.ConfidenceThreshold < 0 || c.Train.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be in [0, 1], got %g", c.Train.ConfidenceThreshold))
	}
	switch c.Output.Verbosity {
	case "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("verbosity must be minimal, standard or full, got %q", c.Output.Verbosity))
	}
	if _, err := c.Output.MaxSizeBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.FileMaxBackups < 0 {
		errs = append(errs, fmt.Errorf("file_max_backups must not be negative, got %d", c.Output.FileMaxBackups))
	}
	if c.Output.WebhookBatchSize < 0 {
		errs = append(errs, fmt.Errorf("webhook_batch_size must not be negative, got %d", c.Output.WebhookBatchSize))
	}

	if len(c.Models) == 0 {
		errs = append(errs, errors.New("at least one model is required"))
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if err := m.validate(c.Prep.MaxLen); err != nil {
			errs = append(errs, fmt.Errorf("models[%d]: %w", i, err))
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
	}

	return errors.Join(errs...)
}

func (m ModelConfig) validate(maxLen int) error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if m.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dim must be positive, got %d", m.EmbeddingDim))
	}
	if m.Filters <= 0 {
		errs = append(errs, fmt.Errorf("filters must be positive, got %d", m.Filters))
	}
	if m.Hidden <= 0 {
		errs = append(errs, fmt.Errorf("hidden must be positive, got %d", m.Hidden))
	}
	if len(m.KernelSizes) == 0 {
		errs = append(errs, errors.New("kernel_sizes is empty"))
	}
	for _, k := range m.KernelSizes {
		if k <= 0 || (maxLen > 0 && k > maxLen) {
			errs = append(errs, fmt.Errorf("kernel size %d outside [1, %d]", k, maxLen))
		}
	}
	for name, p := range map[string]float64{
		"embedding_dropout": m.EmbeddingDropout,
		"pooled_dropout":    m.PooledDropout,
		"hidden_dropout":    m.HiddenDropout,
	} {
		if p < 0 || p >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1), got %g", name, p))
		}
	}
	return errors.Join(errs...)
}

// MaxSizeBytes parses FileMaxSize. An empty value is 0, no rotation.
func (o OutputConfig) MaxSizeBytes() (int64, error) {
	if strings.TrimSpace(o.FileMaxSize) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(o.FileMaxSize)
	if err != nil {
		return 0, fmt.Errorf("file_max_size: %w", err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("file_max_size %q is too large", o.FileMaxSize)
	}
	return int64(n), nil
}

func parseHeaders(v string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed header %q, want Name=value", pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvUint64(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
