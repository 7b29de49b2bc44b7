// Package config defines the run configuration and how it is loaded.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DatasetPath is the JSON dataset to run on. Required.
	DatasetPath string `koanf:"dataset_path"`

	// DealsOutPath, when set, receives the dataset with the resulting deals.
	DealsOutPath string `koanf:"deals_out_path"`

	// InspectionPath, when set, receives the YAML trace of every group.
	InspectionPath string `koanf:"inspection_path"`

	// MetricsTextfile, when set, receives the metrics in the node-exporter
	// textfile format after the run.
	MetricsTextfile string `koanf:"metrics_textfile"`

	// Addr configures the HTTP listen address, e.g. ":9080". Empty disables
	// serve mode.
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of planning workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory group queue.
	QueueSize int `koanf:"queue_size"`

	// TrialDeals creates evaluation deals for trials.
	TrialDeals bool `koanf:"trial_deals"`

	// MinTransactionAmount is a decimal string; sales at or below it are ignored.
	MinTransactionAmount string `koanf:"min_transaction_amount"`

	// FailFast aborts the run on the first bad group instead of skipping it.
	FailFast bool `koanf:"fail_fast"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		WorkerCount:          runtime.NumCPU(),
		QueueSize:            1024,
		MinTransactionAmount: "0",
		FailFast:             true,
	}
}
