package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Driver names accepted in db.driver.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config captures all runtime options for the fuzz runner.
type Config struct {
	Seed       int64         `yaml:"seed"`
	Iterations int           `yaml:"iterations"`
	DB         DBConfig      `yaml:"db"`
	Generation Generation    `yaml:"generation"`
	Phases     []Phase       `yaml:"phases"`
	Adaptive   Adaptive      `yaml:"adaptive"`
	Logging    Logging       `yaml:"logging"`
	Corpus     Corpus        `yaml:"corpus"`
	Storage    StorageConfig `yaml:"storage"`
}

// DBConfig selects the database generated statements run against.
type DBConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Driver             string `yaml:"driver"`
	DSN                string `yaml:"dsn"`
	Database           string `yaml:"database"`
	StatementTimeoutMs int    `yaml:"statement_timeout_ms"`
	// RollbackOnReject undoes the schema changes a rejected statement made
	// to the generator's model.
	RollbackOnReject bool `yaml:"rollback_on_reject"`
}

// Generation bounds tree expansion and controls naming.
type Generation struct {
	MaxNonterminals    int    `yaml:"max_nonterminals"`
	MinNonterminals    int    `yaml:"min_nonterminals"`
	ConvergeAfterSteps int    `yaml:"converge_after_steps"`
	MaxSteps           int    `yaml:"max_steps"`
	MaxAttempts        int    `yaml:"max_attempts"`
	OrderPolicy        string `yaml:"order_policy"`
	WeightPolicy       string `yaml:"weight_policy"`
	NameStyle          string `yaml:"name_style"`
}

// Phase overrides the start symbol or weights for a range of statements.
type Phase struct {
	Name    string               `yaml:"name"`
	Until   int                  `yaml:"until"`
	Start   string               `yaml:"start"`
	Weights map[string][]float64 `yaml:"weights"`
}

// Adaptive configures bandit-based adaptation of one symbol's weights.
type Adaptive struct {
	Enabled        bool    `yaml:"enabled"`
	Symbol         string  `yaml:"symbol"`
	UCBExploration float64 `yaml:"ucb_exploration"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose               bool              `yaml:"verbose"`
	ReportIntervalSeconds int               `yaml:"report_interval_seconds"`
	LogFile               string            `yaml:"log_file"`
	Metrics               MetricsThresholds `yaml:"metrics"`
}

// MetricsThresholds defines alert thresholds for periodic stats logging.
type MetricsThresholds struct {
	AcceptMinRatio float64 `yaml:"accept_min_ratio"`
}

// Corpus controls where generated statements are written.
type Corpus struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	Archive   bool   `yaml:"archive"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse %s", path)
	}
	if err := normalizeConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := defaultConfig()
	_ = normalizeConfig(&cfg)
	return cfg
}

const (
	sqliteMemoryDSN       = "file::memory:"
	mysqlDefaultDSN       = "root:@tcp(127.0.0.1:4000)/"
	maxNonterminalsDef    = 10
	convergeAfterStepsDef = 200
	maxStepsDef           = 5000
	maxAttemptsDef        = 20
	ucbExplorationDef     = 1.5
	reportIntervalDef     = 30
)

func defaultConfig() Config {
	return Config{
		Iterations: 1000,
		DB: DBConfig{
			Enabled:            true,
			Driver:             DriverSQLite,
			StatementTimeoutMs: 5000,
			RollbackOnReject:   true,
		},
		Generation: Generation{
			MaxNonterminals:    maxNonterminalsDef,
			ConvergeAfterSteps: convergeAfterStepsDef,
			MaxSteps:           maxStepsDef,
			MaxAttempts:        maxAttemptsDef,
			OrderPolicy:        "random",
			WeightPolicy:       "remainder",
			NameStyle:          "sequential",
		},
		Adaptive: Adaptive{
			Symbol:         "<phase-3>",
			UCBExploration: ucbExplorationDef,
		},
		Logging: Logging{
			ReportIntervalSeconds: reportIntervalDef,
			LogFile:               "logs/gramfuzz.log",
			Metrics: MetricsThresholds{
				AcceptMinRatio: 0.2,
			},
		},
		Corpus: Corpus{
			Enabled:   true,
			OutputDir: "corpus",
			Archive:   true,
		},
	}
}

func normalizeConfig(cfg *Config) error {
	if cfg.Iterations < 0 {
		cfg.Iterations = 0
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	switch cfg.DB.Driver {
	case "", DriverSQLite:
		cfg.DB.Driver = DriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = sqliteMemoryDSN
		}
	case DriverMySQL:
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = mysqlDefaultDSN
		}
		if cfg.DB.Database != "" {
			cfg.DB.DSN = ensureDatabaseInDSN(cfg.DB.DSN, cfg.DB.Database)
		}
	default:
		return errors.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
	if cfg.DB.StatementTimeoutMs < 0 {
		cfg.DB.StatementTimeoutMs = 0
	}
	gen := &cfg.Generation
	if gen.MaxNonterminals <= 0 {
		gen.MaxNonterminals = maxNonterminalsDef
	}
	if gen.MinNonterminals < 0 {
		gen.MinNonterminals = 0
	}
	if gen.MinNonterminals >= gen.MaxNonterminals {
		gen.MinNonterminals = gen.MaxNonterminals - 1
	}
	if gen.ConvergeAfterSteps <= 0 {
		gen.ConvergeAfterSteps = convergeAfterStepsDef
	}
	if gen.MaxSteps <= 0 {
		gen.MaxSteps = maxStepsDef
	}
	if gen.MaxSteps <= gen.ConvergeAfterSteps {
		gen.MaxSteps = gen.ConvergeAfterSteps * 2
	}
	if gen.MaxAttempts <= 0 {
		gen.MaxAttempts = maxAttemptsDef
	}
	if strings.TrimSpace(cfg.Adaptive.Symbol) == "" {
		cfg.Adaptive.Symbol = "<phase-3>"
	}
	if cfg.Adaptive.UCBExploration <= 0 {
		cfg.Adaptive.UCBExploration = ucbExplorationDef
	}
	if cfg.Logging.ReportIntervalSeconds < 0 {
		cfg.Logging.ReportIntervalSeconds = 0
	}
	if cfg.Corpus.OutputDir == "" {
		cfg.Corpus.OutputDir = "corpus"
	}
	for i, ph := range cfg.Phases {
		if ph.Name == "" {
			cfg.Phases[i].Name = fmt.Sprintf("phase-%d", i+1)
		}
	}
	return nil
}


func ensureDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
	}
	afterSlash := dsn[slash+1:]
	if query >= 0 {
		afterSlash = dsn[slash+1 : query]
	}
	if strings.TrimSpace(afterSlash) != "" {
		return dsn
	}
	if query >= 0 {
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}
