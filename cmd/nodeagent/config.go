package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the flags in main.go's flag set, except --config
// itself and --nm.recovery.supervised, which have no file key. Keys are
// named after the spec's configuration keys, so a cluster operator can check a config
// file into version control instead of assembling a long flag list. Flags
// passed on the command line always win over the same key in the file.
type fileConfig struct {
	NodeHost                          string `yaml:"node-host"`
	NodePort                          int    `yaml:"node-port"`
	ControllerAddr                    string `yaml:"controller-addr"`
	CertDir                           string `yaml:"cert-dir"`
	ClusterID                         string `yaml:"cluster-id"`
	DataDir                           string `yaml:"data-dir"`
	MemoryMiB                         uint64 `yaml:"memory-mib"`
	VCores                            uint32 `yaml:"vcores"`
	DurationToTrackStoppedContainers  string `yaml:"nm.duration-to-track-stopped-containers"`
	MinimumControllerVersion          string `yaml:"nm.resourcemanager.minimum-version"`
	NodeManagerVersion                string `yaml:"node-manager-version"`
	LogAggregationEnabled             bool   `yaml:"log-aggregation.enabled"`
	SecurityEnabled                   bool   `yaml:"security.enabled"`
	TokenRemovalDelay                 string `yaml:"token-removal-delay"`
	NodeLabelsResyncIntervalMs        string `yaml:"nm.node-labels.resync-interval-ms"`
	TimelineV2Enabled                 bool   `yaml:"timeline-v2.enabled"`
	MetricsAddr                       string `yaml:"metrics-addr"`
	LogLevel                          string `yaml:"log-level"`
	LogJSON                           bool   `yaml:"log-json"`
}

// loadFileConfig reads a YAML config file and applies any value it sets
// as a new flag default, so an unset flag on the command line falls back
// to the file instead of the built-in default.
func loadFileConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	flags := rootCmd.Flags()
	setDefault := func(name, value string) {
		if value != "" && !flags.Changed(name) {
			_ = flags.Set(name, value)
		}
	}
	setDefault("node-host", fc.NodeHost)
	if fc.NodePort != 0 {
		setDefault("node-port", fmt.Sprint(fc.NodePort))
	}
	setDefault("controller-addr", fc.ControllerAddr)
	setDefault("cert-dir", fc.CertDir)
	setDefault("cluster-id", fc.ClusterID)
	setDefault("data-dir", fc.DataDir)
	if fc.MemoryMiB != 0 {
		setDefault("memory-mib", fmt.Sprint(fc.MemoryMiB))
	}
	if fc.VCores != 0 {
		setDefault("vcores", fmt.Sprint(fc.VCores))
	}
	setDefault("nm.duration-to-track-stopped-containers", fc.DurationToTrackStoppedContainers)
	setDefault("nm.resourcemanager.minimum-version", fc.MinimumControllerVersion)
	setDefault("node-manager-version", fc.NodeManagerVersion)
	if fc.LogAggregationEnabled {
		setDefault("log-aggregation.enabled", "true")
	}
	if fc.SecurityEnabled {
		setDefault("security.enabled", "true")
	}
	setDefault("token-removal-delay", fc.TokenRemovalDelay)
	setDefault("nm.node-labels.resync-interval-ms", fc.NodeLabelsResyncIntervalMs)
	if fc.TimelineV2Enabled {
		setDefault("timeline-v2.enabled", "true")
	}
	setDefault("metrics-addr", fc.MetricsAddr)
	setDefault("log-level", fc.LogLevel)
	if fc.LogJSON {
		setDefault("log-json", "true")
	}
	return nil
}
