package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/carelinkhq/carelink/internal/flagx"
	"github.com/carelinkhq/carelink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "15s" or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	GatewayBaseURL string         `json:"gateway_base_url"`
	GatewayAPIKey  string         `json:"gateway_api_key"`
	RestBaseURL    string         `json:"rest_base_url"`
	DatabaseDSN    string         `json:"database_dsn"`
	LedgerPath     string         `json:"ledger_path"`
	LoadingTimeout timex.Duration `json:"loading_timeout"`

	S3Region        string `json:"s3_region"`
	S3AccessKey     string `json:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key"`
	S3BaseEndpoint  string `json:"s3_base_endpoint"`
	S3Bucket        string `json:"s3_bucket"`
	S3PublicBaseURL string `json:"s3_public_base_url"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Empty JSON fields leave the existing Config values untouched, so a partial
// file only overrides what it names. Panics on read or unmarshal errors
// (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.GatewayBaseURL != "" {
		cfg.GatewayBaseURL = jc.GatewayBaseURL
	}
	if jc.GatewayAPIKey != "" {
		cfg.GatewayAPIKey = jc.GatewayAPIKey
	}
	if jc.RestBaseURL != "" {
		cfg.RestBaseURL = jc.RestBaseURL
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.LedgerPath != "" {
		cfg.LedgerPath = jc.LedgerPath
	}
	if jc.LoadingTimeout.Duration > 0 {
		cfg.LoadingTimeout = time.Duration(jc.LoadingTimeout.Duration)
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3PublicBaseURL != "" {
		cfg.S3PublicBaseURL = jc.S3PublicBaseURL
	}
}
