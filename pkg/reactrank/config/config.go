package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
	"github.com/cognicore/reactrank/pkg/reactrank/stats"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "REACTRANK_CONFIG"
	EnvDBPath     = "REACTRANK_DB_PATH"
	EnvLogLevel   = "REACTRANK_LOG_LEVEL"
)

// Config holds the settings of a ranking session.
type Config struct {
	// Categories lists tier names from least to most preferred.
	Categories         []string `yaml:"categories" validate:"min=2,unique,dive,required"`
	ExactBinomialLimit int64    `yaml:"exact_binomial_limit" validate:"gte=0"`
	Workers            int      `yaml:"workers" validate:"gte=1,lte=256"`
	Softmax            bool     `yaml:"softmax"`
	DBPath             string   `yaml:"db_path"`
	LogLevel           string   `yaml:"log_level" validate:"oneof=debug info warn error"`
	// SeenCategory is the tier given to items viewed without a reaction.
	SeenCategory string   `yaml:"seen_category"`
	Overlap      *Overlap `yaml:"overlap,omitempty" validate:"omitempty"`
}

// Overlap derives a combined tier from items present in two imported lists,
// e.g. fav ∩ like → favlike.
type Overlap struct {
	First  string `yaml:"first" validate:"required"`
	Second string `yaml:"second" validate:"required,nefield=First"`
	Into   string `yaml:"into" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Categories:         category.DefaultNames(),
		ExactBinomialLimit: stats.DefaultExactLimit,
		Workers:            4,
		DBPath:             "reactrank.db",
		LogLevel:           "info",
		SeenCategory:       "none",
		Overlap: &Overlap{
			First:  "fav",
			Second: "like",
			Into:   "favlike",
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateCategoryRefs, Config{})
	return v
}

// validateCategoryRefs checks that every tier named outside Categories is one of them.
func validateCategoryRefs(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	known := make(map[string]struct{}, len(cfg.Categories))
	for _, name := range cfg.Categories {
		known[name] = struct{}{}
	}
	check := func(value, field string) {
		if value == "" {
			return
		}
		if _, ok := known[value]; !ok {
			sl.ReportError(value, field, field, "category", value)
		}
	}
	check(cfg.SeenCategory, "SeenCategory")
	if cfg.Overlap != nil {
		check(cfg.Overlap.First, "Overlap.First")
		check(cfg.Overlap.Second, "Overlap.Second")
		check(cfg.Overlap.Into, "Overlap.Into")
	}
}

// Validate reports every invalid setting, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), internalerr.ErrInvalidConfig)
	}
	return fmt.Errorf("%v: %w", err, internalerr.ErrInvalidConfig)
}

// Scheme builds the category scheme described by Categories.
func (c Config) Scheme() (*category.Scheme, error) {
	return category.NewScheme(c.Categories)
}

// Load reads a YAML file over the defaults, applies environment overrides and
// validates the result. An empty path falls back to $REACTRANK_CONFIG; if that
// is unset too, only defaults and environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
		}
		cfg.dropStaleDefaults()
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// dropStaleDefaults clears default tier references that a custom category
// list no longer contains.
func (c *Config) dropStaleDefaults() {
	def := Default()
	known := make(map[string]bool, len(c.Categories))
	for _, name := range c.Categories {
		known[name] = true
	}
	if c.SeenCategory == def.SeenCategory && !known[c.SeenCategory] {
		c.SeenCategory = ""
	}
	if c.Overlap != nil && *c.Overlap == *def.Overlap &&
		!(known[c.Overlap.First] && known[c.Overlap.Second] && known[c.Overlap.Into]) {
		c.Overlap = nil
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDBPath); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}
