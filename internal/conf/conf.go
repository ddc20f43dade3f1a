// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Configuration for structured logging.
type LoggingConfig struct {
	// The log level to use (debug, info, warn, error).
	LevelStr string `json:"level"`
	// The log format to use (json, text).
	Format string `json:"format"`
}

type DBReconnectConfig struct {
	// The interval between liveness pings to the database.
	LivenessPingIntervalSeconds int `json:"livenessPingIntervalSeconds"`
	// The interval between reconnection attempts on connection loss.
	RetryIntervalSeconds int `json:"retryIntervalSeconds"`
	// The maximum number of reconnection attempts on connection loss before panic.
	MaxRetries int `json:"maxRetries"`
}

// Database configuration.
type DBConfig struct {
	Host      string            `json:"host"`
	Port      int               `json:"port"`
	Database  string            `json:"database"`
	User      string            `json:"user"`
	Password  string            `json:"password"`
	Reconnect DBReconnectConfig `json:"reconnect"`
}

// Configuration for the monitoring module.
type MonitoringConfig struct {
	// The labels to add to all metrics.
	Labels map[string]string `json:"labels"`
	// The port to expose the metrics on.
	Port int `json:"port"`
}

type MQTTReconnectConfig struct {
	// The interval between reconnection attempts on connection loss.
	RetryIntervalSeconds int `json:"retryIntervalSeconds"`
	// The maximum number of reconnection attempts on connection loss before panic.
	MaxRetries int `json:"maxRetries"`
}

// Configuration for the mqtt client.
type MQTTConfig struct {
	// The URL of the MQTT broker to use for mqtt.
	URL string `json:"url"`
	// Credentials for the MQTT broker.
	Username  string              `json:"username"`
	Password  string              `json:"password"`
	Reconnect MQTTReconnectConfig `json:"reconnect"`
}

// Configuration for the api port.
type APIConfig struct {
	// The port to expose the API on.
	Port int `json:"port"`
}

// Names of supported project leaders.
const (
	LeaderIguazio = "iguazio"
	LeaderNop     = "nop"
)

// Roles a replica of this service can take. Only the chief runs
// background reconciliation against the leader.
const (
	RoleChief  = "chief"
	RoleWorker = "worker"
)

// Configuration for the projects follower module.
type ProjectsConfig struct {
	// Which leader implementation to bind to (iguazio, nop).
	Leader string `json:"leader"`
	// Base URL of the leader API (iguazio only).
	LeaderURL string `json:"leaderURL"`
	// Access key used as the session for leader-bound sync requests.
	LeaderAccessKey string `json:"leaderAccessKey"`
	// Interval between periodic sync runs, as a duration string
	// (e.g. "1m"). Unset, zero or negative disables the periodic sync.
	PeriodicSyncInterval string `json:"periodicSyncInterval"`
	// Role of this replica (chief, worker).
	Role string `json:"role"`
}

// Parse the periodic sync interval. Unset means disabled.
func (c ProjectsConfig) SyncInterval() (time.Duration, error) {
	if c.PeriodicSyncInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.PeriodicSyncInterval)
}

type Config struct {
	LoggingConfig    `json:"logging"`
	DBConfig         `json:"db"`
	MonitoringConfig `json:"monitoring"`
	MQTTConfig       `json:"mqtt"`
	APIConfig        `json:"api"`
	ProjectsConfig   `json:"projects"`
}

// Check if the configuration is valid. The service must not start
// serving as a follower without a valid leader binding.
func (c *Config) Validate() error {
	switch c.ProjectsConfig.Leader {
	case LeaderIguazio:
		if c.ProjectsConfig.LeaderAccessKey == "" {
			return fmt.Errorf("leader access key must be configured when the leader is %s", LeaderIguazio)
		}
		if c.ProjectsConfig.LeaderURL == "" {
			return fmt.Errorf("leader url must be configured when the leader is %s", LeaderIguazio)
		}
	case LeaderNop:
		// Nothing to check.
	default:
		return fmt.Errorf("unsupported project leader %q", c.ProjectsConfig.Leader)
	}
	switch c.ProjectsConfig.Role {
	case RoleChief, RoleWorker:
	default:
		return fmt.Errorf("unsupported role %q", c.ProjectsConfig.Role)
	}
	if _, err := c.ProjectsConfig.SyncInterval(); err != nil {
		return fmt.Errorf("invalid periodic sync interval: %w", err)
	}
	return nil
}

// Create a new configuration from the default config json file.
//
// This will read two files:
//   - /etc/config/conf.json
//   - /etc/secrets/secrets.json
//
// The values read from secrets.json will override the values in conf.json
func GetConfigOrDie[C any]() C {
	// Note: We need to read the config as a raw map first, to avoid golang
	// unmarshalling default values for the fields.

	// Read the base config from the configmap (not including secrets).
	cmConf, err := readRawConfig("/etc/config/conf.json")
	if err != nil {
		panic(err)
	}
	// Read the secrets config from the kubernetes secret.
	secretConf, err := readRawConfig("/etc/secrets/secrets.json")
	if err != nil {
		panic(err)
	}
	return newConfigFromMaps[C](cmConf, secretConf)
}

func newConfigFromMaps[C any](base, override map[string]any) C {
	// Merge the base config with the override config.
	mergedConf := mergeMaps(base, override)
	// Marshal again, and then unmarshal into the config struct.
	mergedBytes, err := json.Marshal(mergedConf)
	if err != nil {
		panic(err)
	}
	var c C
	if err := json.Unmarshal(mergedBytes, &c); err != nil {
		panic(err)
	}
	return c
}

// Read the json as a map from the given file path.
func readRawConfig(filepath string) (map[string]any, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return readRawConfigFromBytes(bytes)
}

func readRawConfigFromBytes(data []byte) (map[string]any, error) {
	var conf map[string]any
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// mergeMaps recursively overrides dst with src (in-place)
func mergeMaps(dst, src map[string]any) map[string]any {
	result := dst
	for k, v := range src {
		if v == nil {
			// If src value is nil, skip override
			continue
		}
		if dstVal, ok := dst[k]; ok {
			// If both are maps, merge recursively
			dstMap, dstIsMap := dstVal.(map[string]any)
			srcMap, srcIsMap := v.(map[string]any)
			if dstIsMap && srcIsMap {
				result[k] = mergeMaps(dstMap, srcMap)
				continue
			}
		}
		// Otherwise, override
		result[k] = v
	}
	return result
}
