package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/logger"
	"github.com/dentametrics/pmsync/rdbms/shared"
)

// Config is the fully parsed pipeline configuration.
type Config struct {
	Environment  string                   `json:"environment" mapstructure:"environment"`
	Source       shared.ConnectionDetails `json:"source" mapstructure:"source"`
	Target       shared.ConnectionDetails `json:"target" mapstructure:"target"`
	TargetSchema string                   `json:"targetSchema" mapstructure:"targetSchema"`
	Tables       []TableConfig            `json:"tables" mapstructure:"tables"`
	Copier       CopierConfig             `json:"copier" mapstructure:"copier"`
	Validator    ValidatorConfig          `json:"validator" mapstructure:"validator"`
	Metrics      MetricsConfig            `json:"metrics" mapstructure:"metrics"`
}

type CopierConfig struct {
	BatchSize     int `json:"batchSize" mapstructure:"batchSize"`
	SubBatchSize  int `json:"subBatchSize" mapstructure:"subBatchSize"`
	RetryAttempts int `json:"retryAttempts" mapstructure:"retryAttempts"`
	Parallel      int `json:"parallel" mapstructure:"parallel"`
}

type ValidatorConfig struct {
	SmallTableThreshold int     `json:"smallTableThreshold" mapstructure:"smallTableThreshold"`
	CountTolerance      float64 `json:"countTolerance" mapstructure:"countTolerance"`
}

type MetricsConfig struct {
	RetentionDays int `json:"retentionDays" mapstructure:"retentionDays"`
}

// NewFromFile loads, defaults and validates a Config from the YAML file at path.
// Values found via the supplied Provider take precedence over the file so
// secrets can live in the environment rather than on disk.
func NewFromFile(log logger.Logger, path string, p Provider) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath() { // if the default location was never set up...
			if mkErr := MakeConfigHomeDir(); mkErr != nil {
				return nil, mkErr
			}
			return nil, errors.Errorf("no config file found: create %v or supply --config", path)
		}
		return nil, errors.Wrapf(err, "error reading config file %v", path)
	}
	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "error parsing config file %v", path)
	}
	cfg := &Config{}
	if err := mapstructure.Decode(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "error decoding config file %v", path)
	}
	cfg.applyProvider(p)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug("loaded config for environment ", cfg.Environment, " with ", len(cfg.Tables), " tables from ", path)
	return cfg, nil
}

// applyProvider overlays values found in p onto c.
func (c *Config) applyProvider(p Provider) {
	if p == nil {
		return
	}
	if v, ok := p.Get("environment"); ok {
		c.Environment = v
	}
	if v, ok := p.Get("source_password"); ok {
		c.Source.SetData("password", v)
	}
	if v, ok := p.Get("target_password"); ok {
		c.Target.SetData("password", v)
	}
}

// ApplyDefaults fills zero values with engine defaults, including per table
// copier settings.
func (c *Config) ApplyDefaults() {
	if c.TargetSchema == "" {
		c.TargetSchema = "public"
	}
	if c.Source.Type == "" {
		c.Source.Type = constants.ConnectionTypeMysql
	}
	if c.Target.Type == "" {
		c.Target.Type = constants.ConnectionTypePostgres
	}
	if c.Source.LogicalName == "" {
		c.Source.LogicalName = "source"
	}
	if c.Target.LogicalName == "" {
		c.Target.LogicalName = "target"
	}
	if c.Copier.BatchSize <= 0 {
		c.Copier.BatchSize = constants.BatchSizeDefault
	}
	if c.Copier.SubBatchSize <= 0 {
		c.Copier.SubBatchSize = constants.SubBatchSizeDefault
	}
	if c.Copier.RetryAttempts <= 0 {
		c.Copier.RetryAttempts = constants.RetryAttemptsDefault
	}
	if c.Copier.Parallel <= 0 {
		c.Copier.Parallel = 1
	}
	if c.Validator.SmallTableThreshold <= 0 {
		c.Validator.SmallTableThreshold = constants.SmallTableThresholdDefault
	}
	if c.Validator.CountTolerance <= 0 {
		c.Validator.CountTolerance = constants.CountToleranceDefault
	}
	if c.Metrics.RetentionDays <= 0 {
		c.Metrics.RetentionDays = constants.MetricsRetentionDaysDefault
	}
	for i := range c.Tables {
		c.Tables[i].applyDefaults(&c.Copier)
	}
}

// Validate fails fast on config that would break the pipeline at run time.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return errors.New("environment must be set in config or via " + constants.EnvVarEnvironment)
	}
	if len(c.Tables) == 0 {
		return errors.New("no tables configured")
	}
	seen := make(map[string]struct{}, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if err := t.validate(); err != nil {
			return err
		}
		if _, ok := seen[t.Name]; ok { // if the table appears twice...
			return fmt.Errorf("table %q is configured more than once", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// LoadConnection resolves a connection by role name, "source" or "target".
func (c *Config) LoadConnection(name string) (shared.ConnectionDetails, error) {
	switch name {
	case "source":
		return c.Source, nil
	case "target":
		return c.Target, nil
	}
	return shared.ConnectionDetails{}, fmt.Errorf("connection %q is not configured", name)
}

// TableByName returns the config for the named table or nil when it is not
// configured.
func (c *Config) TableByName(name string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i]
		}
	}
	return nil
}
