// Package config loads the environment-variable configuration
// (§6) into a validated Config value. Every missing or malformed
// required variable is collected into a single ConfigError so the
// operator reports every problem at once instead of failing on the
// first one, then failing fast at startup, per §7's "ConfigError:
// missing/invalid configuration -> fatal at startup" propagation
// policy.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"mongorsop/internal/constants"
	"mongorsop/internal/rsops"
)

// Config is the fully-resolved, validated runtime configuration.
type Config struct {
	OverlayNetworkName string
	MongoServiceName   string
	ReplicaSetName     string
	MongoPort          uint16

	MongoRootUsername string
	MongoRootPassword string

	InitialDatabase string
	InitialUser     string
	InitialPassword string

	Debug               bool
	CycleInterval       time.Duration
	ElectionTimeout     time.Duration
	ScaleDownHysteresis int
}

// Load reads and validates configuration from the environment. Any
// problem is returned as a single rsops.KindConfig error.
func Load() (Config, error) {
	var errs []error
	req := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
		return v
	}

	cfg := Config{
		OverlayNetworkName: req("OVERLAY_NETWORK_NAME"),
		MongoServiceName:   req("MONGO_SERVICE_NAME"),
		ReplicaSetName:     req("REPLICASET_NAME"),
		MongoRootUsername:  req("MONGO_ROOT_USERNAME"),
		MongoRootPassword:  req("MONGO_ROOT_PASSWORD"),
		InitialDatabase:    req("INITDB_DATABASE"),
		InitialUser:        req("INITDB_USER"),
		InitialPassword:    req("INITDB_PASSWORD"),
	}

	cfg.MongoPort = parseUint16(getenvOr("MONGO_PORT", ""), uint16(constants.DefaultMongoPort), &errs)
	cfg.Debug = getenvOr("DEBUG", "0") == "1"
	cfg.CycleInterval = parseSeconds(getenvOr("CYCLE_INTERVAL_SEC", ""), constants.DefaultCycleInterval, &errs)
	cfg.ElectionTimeout = parseSeconds(getenvOr("ELECTION_TIMEOUT_SEC", ""), constants.DefaultElectionTimeout, &errs)
	cfg.ScaleDownHysteresis = constants.DefaultScaleDownHysteresisCycles
	if v := os.Getenv("SCALE_DOWN_HYSTERESIS_CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("SCALE_DOWN_HYSTERESIS_CYCLES must be a non-negative integer, got %q", v))
		} else {
			cfg.ScaleDownHysteresis = n
		}
	}

	if len(errs) > 0 {
		return Config{}, rsops.NewError(rsops.KindConfig, errors.Join(errs...))
	}
	return cfg, nil
}

func getenvOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func parseUint16(raw string, fallback uint16, errs *[]error) uint16 {
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid port %q: %w", raw, err))
		return fallback
	}
	return uint16(n)
}

func parseSeconds(raw string, fallback time.Duration, errs *[]error) time.Duration {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid seconds value %q", raw))
		return fallback
	}
	return time.Duration(n) * time.Second
}
