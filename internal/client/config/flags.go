package config

import (
	"flag"
	"os"
	"time"

	"github.com/carelinkhq/carelink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-g string   base URL of the auth gateway
//	-r string   base URL of the hosted table API
//	-k string   project API key
//	-d string   Postgres DSN for direct table access (optional)
//	-l string   path of the local ledger database
//	-t int      loading watchdog timeout in seconds
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-g", "-r", "-k", "-d", "-l", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.GatewayBaseURL, "g", cfg.GatewayBaseURL, "base URL of the auth gateway")
	fs.StringVar(&cfg.RestBaseURL, "r", cfg.RestBaseURL, "base URL of the hosted table API")
	fs.StringVar(&cfg.GatewayAPIKey, "k", cfg.GatewayAPIKey, "project API key")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "Postgres DSN for direct table access")
	fs.StringVar(&cfg.LedgerPath, "l", cfg.LedgerPath, "path of the local ledger database")
	loadingTimeout := fs.Int("t", int(cfg.LoadingTimeout.Seconds()), "loading watchdog timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.LoadingTimeout = time.Duration(*loadingTimeout) * time.Second
}
