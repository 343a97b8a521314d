package config

import "time"

// Config holds runtime settings for the CareLink client.
//
// Fields:
//   - GatewayBaseURL: base URL of the hosted identity provider's auth API.
//   - GatewayAPIKey: project API key sent with every gateway request.
//   - RestBaseURL: base URL of the hosted table API (profiles, votes).
//   - DatabaseDSN: optional Postgres DSN; when set, profile and vote access
//     goes straight at the database instead of the table API.
//   - LedgerPath: path of the local sqlite file holding pending-action slots.
//   - LoadingTimeout: watchdog interval for stuck loading phases.
//   - S3*: bucket settings for avatar uploads.
type Config struct {
	GatewayBaseURL string
	GatewayAPIKey  string
	RestBaseURL    string
	DatabaseDSN    string
	LedgerPath     string
	LoadingTimeout time.Duration

	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3BaseEndpoint  string
	S3Bucket        string
	S3PublicBaseURL string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GatewayBaseURL = "http://127.0.0.1:9999/auth/v1"
	c.RestBaseURL = "http://127.0.0.1:9999/rest/v1"
	c.LedgerPath = "carelink.db"
	c.LoadingTimeout = 15 * time.Second
	c.S3Region = "us-east-1"
	c.S3Bucket = "avatars"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
