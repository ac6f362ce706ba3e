package config

import (
	"os"
	"testing"

	"mongorsop/internal/rsops"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OVERLAY_NETWORK_NAME", "MONGO_SERVICE_NAME", "REPLICASET_NAME",
		"MONGO_PORT", "MONGO_ROOT_USERNAME", "MONGO_ROOT_PASSWORD",
		"INITDB_DATABASE", "INITDB_USER", "INITDB_PASSWORD",
		"DEBUG", "CYCLE_INTERVAL_SEC", "ELECTION_TIMEOUT_SEC",
		"SCALE_DOWN_HYSTERESIS_CYCLES",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadMissingRequiredReturnsConfigError(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required vars")
	}
	if rsops.Kind(err) != rsops.KindConfig {
		t.Fatalf("expected KindConfig, got %v", rsops.Kind(err))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	env := map[string]string{
		"OVERLAY_NETWORK_NAME": "mongo_net",
		"MONGO_SERVICE_NAME":   "mongo",
		"REPLICASET_NAME":      "rs0",
		"MONGO_ROOT_USERNAME":  "root",
		"MONGO_ROOT_PASSWORD":  "secret",
		"INITDB_DATABASE":      "appdb",
		"INITDB_USER":          "appuser",
		"INITDB_PASSWORD":      "apppass",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MongoPort != 27017 {
		t.Fatalf("expected default port 27017, got %d", cfg.MongoPort)
	}
	if cfg.CycleInterval.Seconds() != 30 {
		t.Fatalf("expected default cycle interval 30s, got %v", cfg.CycleInterval)
	}
}

func TestLoadInvalidPortIsCollectedAsConfigError(t *testing.T) {
	clearEnv(t)
	os.Setenv("OVERLAY_NETWORK_NAME", "n")
	os.Setenv("MONGO_SERVICE_NAME", "s")
	os.Setenv("REPLICASET_NAME", "rs0")
	os.Setenv("MONGO_ROOT_USERNAME", "root")
	os.Setenv("MONGO_ROOT_PASSWORD", "secret")
	os.Setenv("INITDB_DATABASE", "appdb")
	os.Setenv("INITDB_USER", "appuser")
	os.Setenv("INITDB_PASSWORD", "apppass")
	os.Setenv("MONGO_PORT", "not-a-port")
	defer clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
	if rsops.Kind(err) != rsops.KindConfig {
		t.Fatalf("expected KindConfig, got %v", rsops.Kind(err))
	}
}
