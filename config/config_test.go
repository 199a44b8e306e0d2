package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/dentametrics/pmsync/constants"
)

const testConfigYaml = `
environment: staging
source:
  data:
    host: db.practice.local
    port: "3306"
    database: opendental
    user: replica
tables:
  - name: patient
    primaryKey: [PatNum]
    incrementalColumns: [DateTStamp]
    tier: critical
  - name: securitylog
    primaryKey: [SecurityLogNum]
    strategy: bulk
    batchSize: 20000
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewFromFile(t *testing.T) {
	log := logrus.New()
	p := writeTestConfig(t, testConfigYaml)
	cfg, err := NewFromFile(log, p, MapProvider{"source_password": "s3cret"})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	// Provider overrides are applied.
	if cfg.Source.Data["password"] != "s3cret" {
		t.Fatal("expected provider to set the source password")
	}
	// Defaults are applied.
	if cfg.Source.Type != constants.ConnectionTypeMysql {
		t.Fatal("expected default source type mysql, got: ", cfg.Source.Type)
	}
	if cfg.Target.Type != constants.ConnectionTypePostgres {
		t.Fatal("expected default target type postgres, got: ", cfg.Target.Type)
	}
	if cfg.TargetSchema != "public" {
		t.Fatal("expected default target schema public, got: ", cfg.TargetSchema)
	}
	if cfg.Copier.BatchSize != constants.BatchSizeDefault {
		t.Fatal("expected default batch size, got: ", cfg.Copier.BatchSize)
	}
	// Per table defaults and overrides.
	patient := cfg.TableByName("patient")
	if patient == nil {
		t.Fatal("expected table patient to be configured")
	}
	if patient.BatchSize != constants.BatchSizeDefault {
		t.Fatal("expected patient to inherit the default batch size, got: ", patient.BatchSize)
	}
	seclog := cfg.TableByName("securitylog")
	if seclog.BatchSize != 20000 {
		t.Fatal("expected securitylog batch size override, got: ", seclog.BatchSize)
	}
	if seclog.Tier != constants.TableTierImportant {
		t.Fatal("expected default tier important, got: ", seclog.Tier)
	}
	// LoadConnection serves source and target by role.
	c, err := cfg.LoadConnection("source")
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if c.Data["host"] != "db.practice.local" {
		t.Fatal("unexpected source host: ", c.Data["host"])
	}
	if _, err = cfg.LoadConnection("sideways"); err == nil {
		t.Fatal("expected an error for an unknown connection role")
	}
}

func TestValidation(t *testing.T) {
	log := logrus.New()

	// Test 1 - missing environment fails fast.
	p := writeTestConfig(t, `
tables:
  - name: patient
`)
	if _, err := NewFromFile(log, p, nil); err == nil {
		t.Fatal("expected an error for missing environment")
	}

	// Test 2 - the environment can come from the provider.
	if _, err := NewFromFile(log, p, MapProvider{"environment": "dev"}); err != nil {
		t.Fatal("expected provider environment to satisfy validation, got: ", err)
	}

	// Test 3 - duplicate tables are rejected.
	p = writeTestConfig(t, `
environment: dev
tables:
  - name: patient
  - name: patient
`)
	if _, err := NewFromFile(log, p, nil); err == nil {
		t.Fatal("expected an error for duplicate tables")
	}

	// Test 4 - upsert requires a primary key.
	p = writeTestConfig(t, `
environment: dev
tables:
  - name: patient
    strategy: upsert
`)
	if _, err := NewFromFile(log, p, nil); err == nil {
		t.Fatal("expected an error for upsert without a primary key")
	}

	// Test 5 - unknown strategy is rejected.
	p = writeTestConfig(t, `
environment: dev
tables:
  - name: patient
    strategy: sideways
`)
	if _, err := NewFromFile(log, p, nil); err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
}
