package config

import "os"

// Config carries the environment-provided settings. Every field has a
// placeholder default so the binaries start in a dev environment with
// nothing set.
type Config struct {
	Project   string // logical project identifier, used in table names
	Bootstrap string // kafka bootstrap servers
	Topic     string // sales events topic
	Group     string // pipeline consumer group (subscription)
	Bucket    string // object store root (directory in the local binding)
	Dataset   string // warehouse dataset name
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	return Config{
		Project:   getenv("PROJECT_ID", "local-dev"),
		Bootstrap: getenv("KAFKA_BOOTSTRAP", "localhost:19092"),
		Topic:     getenv("SALES_TOPIC", "sales.orders"),
		Group:     getenv("SALES_SUBSCRIPTION", "sales-pipeline"),
		Bucket:    getenv("SALES_BUCKET", "./data/bucket"),
		Dataset:   getenv("SALES_DATASET", "sales_dwh"),
	}
}

// RawTable returns the fully qualified raw table identifier.
func (c Config) RawTable() string { return c.Project + "." + c.Dataset + ".sales_raw" }

// SummaryTable returns the fully qualified summary table identifier.
func (c Config) SummaryTable() string { return c.Project + "." + c.Dataset + ".sales_summary" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
