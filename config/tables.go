package config

import (
	"fmt"

	"github.com/dentametrics/pmsync/constants"
	"github.com/dentametrics/pmsync/helper"
)

// TableConfig describes one source table to be replicated.
type TableConfig struct {
	Name               string   `json:"name" mapstructure:"name"`
	PrimaryKey         []string `json:"primaryKey" mapstructure:"primaryKey"`
	IncrementalColumns []string `json:"incrementalColumns" mapstructure:"incrementalColumns"`
	Strategy           string   `json:"strategy" mapstructure:"strategy"`
	Tier               string   `json:"tier" mapstructure:"tier"`
	BatchSize          int      `json:"batchSize" mapstructure:"batchSize"`
	SubBatchSize       int      `json:"subBatchSize" mapstructure:"subBatchSize"`
}

var validStrategies = []string{
	"", // resolved per table at run time
	constants.SyncStrategyFull,
	constants.SyncStrategyIncremental,
	constants.SyncStrategyBulk,
	constants.SyncStrategyUpsert,
}

var validTiers = []string{
	"",
	constants.TableTierCritical,
	constants.TableTierImportant,
	constants.TableTierAudit,
	constants.TableTierReference,
}

func (t *TableConfig) applyDefaults(c *CopierConfig) {
	if t.BatchSize <= 0 {
		t.BatchSize = c.BatchSize
	}
	if t.SubBatchSize <= 0 {
		t.SubBatchSize = c.SubBatchSize
	}
	if t.SubBatchSize > t.BatchSize {
		t.SubBatchSize = t.BatchSize
	}
	if t.Tier == "" {
		t.Tier = constants.TableTierImportant
	}
}

func (t *TableConfig) validate() error {
	if t.Name == "" {
		return fmt.Errorf("table with no name in config")
	}
	if !helper.StringInSlice(t.Strategy, validStrategies) {
		return fmt.Errorf("table %q has unsupported strategy %q", t.Name, t.Strategy)
	}
	if !helper.StringInSlice(t.Tier, validTiers) {
		return fmt.Errorf("table %q has unsupported tier %q", t.Name, t.Tier)
	}
	if t.Strategy == constants.SyncStrategyUpsert && len(t.PrimaryKey) == 0 {
		return fmt.Errorf("table %q uses the upsert strategy but has no primary key configured", t.Name)
	}
	return nil
}
