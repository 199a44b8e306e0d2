package cmd

import (
	"os"
	"testing"
)

func TestGetCliFlag(t *testing.T) {
	flagName := "tables"
	envVar := flagNameToEnvVar(flagName)
	expected := "envTest"
	d := "myDefault"
	// Test 1 - test default value applied when the env var is not set.
	_ = os.Unsetenv(envVar)
	got := switches.getCliFlag(flagName, d)
	if got.val != d { // if no default was applied...
		t.Fatalf("test 1 failed: expected default value %v to be applied to CLI flag %v", d, flagName)
	}
	// Test 2 - fetch flag value from environment after setting it explicitly.
	err := os.Setenv(envVar, expected)
	if err != nil {
		t.Fatalf("test 2 failed: unable to set environment variable %v", envVar)
	}
	defer func() { _ = os.Unsetenv(envVar) }()
	got = switches.getCliFlag(flagName, d)
	if got.val != expected {
		t.Fatalf("test 2 failed: expected value (%v) to be applied to CLI flag (%v) fetched from environment variable (%v); got: %v", expected, flagName, envVar, got.val)
	}
}

func TestFlagNameToEnvVar(t *testing.T) {
	got := flagNameToEnvVar("cleanup-days")
	expected := "PMSYNC_CLEANUP_DAYS"
	if got != expected {
		t.Fatalf("expected %v; got %v", expected, got)
	}
}
