package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/healthdes/desim/sim/model"
)

// Environment keys read from the process environment or a .env file.
const (
	envConfigPath = "DESIM_CONFIG"
	envLogLevel   = "DESIM_LOG"
)

// dotEnvPath is the optional dotenv file consulted before flags are resolved.
var dotEnvPath = ".env"

// loadDotEnv loads dotEnvPath into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv() {
	if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Ignoring unreadable %s: %v", dotEnvPath, err)
	}
}

// envDefault returns the flag value when the flag was given explicitly, else
// the environment value when set, else the flag default.
func envDefault(cmd *cobra.Command, flag, key, value string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return value
}

// LoadRunConfig reads a YAML run configuration on top of model.DefaultConfig.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadRunConfig(path string) (model.Config, error) {
	cfg := model.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing run config: %w", err)
	}
	return cfg, nil
}

// resolveConfig builds the run configuration: defaults, then the config file
// (--config or DESIM_CONFIG), then every flag given explicitly.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	cfg := model.DefaultConfig()
	if path := envDefault(cmd, "config", envConfigPath, configPath); path != "" {
		loaded, err := LoadRunConfig(path)
		if err != nil {
			return cfg, err
		}
		logrus.Infof("Loaded run configuration from %s", path)
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Entropy = seed
	}
	if flags.Changed("iat") {
		cfg.MeanInterArrivalTime = meanInterArrival
	}
	if flags.Changed("service") {
		cfg.MeanServiceDuration = meanService
	}
	if flags.Changed("servers") {
		cfg.ServerCount = serverCount
	}
	if flags.Changed("run-length") {
		cfg.RunLength = runLength
	}
	if flags.Changed("first-obs") {
		v := firstObservation
		cfg.FirstObservation = &v
	}
	if flags.Changed("audit-interval") {
		v := auditInterval
		cfg.AuditInterval = &v
	}
	return cfg, cfg.Validate()
}
