// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mode selects between learning a transition matrix and trading from one.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeInfer Mode = "infer"
)

// Config defines the structure for all application configuration.
type Config struct {
	App        AppConfig       `yaml:"app"`
	Indicators IndicatorConfig `yaml:"indicators"`
	Encoder    EncoderConfig   `yaml:"encoder"`
	Model      ModelConfig     `yaml:"model"`
	Risk       RiskConfig      `yaml:"risk"`
	Replay     ReplayConfig    `yaml:"replay"`
	Database   DatabaseConfig  `yaml:"database"`
	DBWriter   DBWriterConfig  `yaml:"db_writer"`
	HTTP       HTTPConfig      `yaml:"http"`
}

// AppConfig holds process level settings.
type AppConfig struct {
	LogLevel   string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error fatal"`
	Mode       Mode   `yaml:"mode" default:"train" validate:"oneof=train infer"`
	StrategyID string `yaml:"strategy_id" default:"regime-bracket"`
}

// IndicatorConfig holds the lookbacks of the streaming indicators.
type IndicatorConfig struct {
	FastPeriod     int `yaml:"fast_period" default:"10" validate:"gt=0"`
	SlowPeriod     int `yaml:"slow_period" default:"30" validate:"gtfield=FastPeriod"`
	ShortStdPeriod int `yaml:"short_std_period" default:"20" validate:"gt=1"`
	LongStdPeriod  int `yaml:"long_std_period" default:"100" validate:"gtfield=ShortStdPeriod"`
	ATRPeriod      int `yaml:"atr_period" default:"14" validate:"gt=0"`
}

// EncoderConfig parameterizes state discretization.
type EncoderConfig struct {
	TrendEpsilon    float64   `yaml:"trend_epsilon" default:"0" validate:"gte=0"`
	LongTrendBucket int       `yaml:"long_trend_bucket" default:"20" validate:"gt=0"`
	ShortThresholds []float64 `yaml:"short_thresholds" default:"[0.5,1.5,2.0]" validate:"min=1,ascending"`
	LongThresholds  []float64 `yaml:"long_thresholds" default:"[0.5,1.5,2.0]" validate:"min=1,ascending"`
}

// ModelConfig parameterizes transition matrix compilation and querying.
type ModelConfig struct {
	MinSamples        int     `yaml:"min_samples" default:"3" validate:"gte=0"`
	LowConfidenceProb float64 `yaml:"low_confidence_prob" default:"0.05" validate:"gte=0,lte=1"`
	MinCandidateProb  float64 `yaml:"min_candidate_prob" default:"0.3" validate:"gte=0,lt=1"`
	MatrixPath        string  `yaml:"matrix_path" default:"transition_matrix.csv" validate:"required"`
}

// RiskConfig parameterizes position sizing.
type RiskConfig struct {
	ATRMultiplier       float64 `yaml:"atr_multiplier" default:"2" validate:"gt=0"`
	MaxRiskFraction     float64 `yaml:"max_risk_fraction" default:"0.01" validate:"gt=0,lte=1"`
	MaxNotionalFraction float64 `yaml:"max_notional_fraction" default:"0.10" validate:"gt=0,lte=1"`
	MinRewardToRisk     float64 `yaml:"min_reward_to_risk" default:"2.0" validate:"gte=0"`
	NotionalTolerance   float64 `yaml:"notional_tolerance" default:"0.05" validate:"gte=0"`
	StartingEquity      float64 `yaml:"starting_equity" default:"100000" validate:"gt=0"`
}

// ReplayConfig describes the historical data a run consumes.
type ReplayConfig struct {
	BarsCSV        string   `yaml:"bars_csv"`
	TickersFile    string   `yaml:"tickers_file"`
	ExclusionsFile string   `yaml:"exclusions_file"`
	Tickers        []string `yaml:"tickers"`
	WarmupBars     int      `yaml:"warmup_bars" default:"100" validate:"gte=0"`
	FromDB         FlexBool `yaml:"from_db"`
	Start          string   `yaml:"start"`
	End            string   `yaml:"end"`
}

// DatabaseConfig holds connection settings for TimescaleDB.
type DatabaseConfig struct {
	Host     string   `yaml:"host" default:"localhost"`
	Port     int      `yaml:"port" default:"5432"`
	User     string   `yaml:"user"`
	Password string   `yaml:"-"`
	Name     string   `yaml:"name"`
	SSLMode  string   `yaml:"sslmode" default:"disable"`
	Migrate  FlexBool `yaml:"migrate"`
}

// DBWriterConfig holds batch writer settings.
type DBWriterConfig struct {
	Enabled              FlexBool `yaml:"enabled"`
	BatchSize            int      `yaml:"batch_size" default:"500"`
	WriteIntervalSeconds int      `yaml:"write_interval_seconds" default:"5"`
}

// HTTPConfig holds the status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// DSN returns a postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Enabled reports whether enough settings are present to connect.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.User != "" && d.Name != ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("ascending", validateAscending); err != nil {
		panic(err)
	}
	return v
}

// validateAscending accepts strictly ascending, positive float slices.
func validateAscending(fl validator.FieldLevel) bool {
	values, ok := fl.Field().Interface().([]float64)
	if !ok {
		return false
	}
	for i, v := range values {
		if v <= 0 {
			return false
		}
		if i > 0 && v <= values[i-1] {
			return false
		}
	}
	return true
}

// LoadDotEnv loads environment variables from path. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg against its validation rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if mode := os.Getenv("MODE"); mode != "" {
		cfg.App.Mode = Mode(mode)
	}
	if matrixPath := os.Getenv("MATRIX_PATH"); matrixPath != "" {
		cfg.Model.MatrixPath = matrixPath
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		port, err := strconv.Atoi(dbPort)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", dbPort, err)
		}
		cfg.Database.Port = port
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}
	return nil
}
