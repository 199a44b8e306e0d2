package config

import (
	"os"

	"github.com/dentametrics/pmsync/helper"
)

// Provider supplies config overrides by key. Keys are lower case with
// underscores, e.g. "source_password".
type Provider interface {
	Get(key string) (string, bool)
}

// EnvProvider reads overrides from the process environment using the
// PMSYNC_ prefix, so "source_password" maps to PMSYNC_SOURCE_PASSWORD.
type EnvProvider struct{}

func (e EnvProvider) Get(key string) (string, bool) {
	v, ok := os.LookupEnv(helper.EnvVarName(key))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MapProvider supplies overrides from a fixed map. Used in tests.
type MapProvider map[string]string

func (m MapProvider) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
