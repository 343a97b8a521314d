package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/carelinkhq/carelink/internal/client/avatars"
	"github.com/carelinkhq/carelink/internal/client/community"
	"github.com/carelinkhq/carelink/internal/client/config"
	"github.com/carelinkhq/carelink/internal/client/gateway"
	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/nav"
	"github.com/carelinkhq/carelink/internal/client/profiles"
	"github.com/carelinkhq/carelink/internal/client/session"
	"github.com/carelinkhq/carelink/internal/logging"
)

// App wires the session controller and its collaborators into a terminal
// client.
type App struct {
	config     *config.Config
	gw         *gateway.HTTPGateway
	controller *session.Controller
	profiles   profiles.Store
	votes      community.VoteStore
	avatars    *avatars.Service
	ledger     ledger.Ledger
	sink       *TerminalSink
	log        logging.Logger
	reader     *bufio.Reader

	ledgerDB *sql.DB
	tableDB  *sql.DB
}

// NewApp builds the full dependency graph from configuration. Profile and
// vote access goes through the hosted table API unless DatabaseDSN routes it
// straight at Postgres.
func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ledgerDB, err := ledger.Open(ctx, c.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	led := ledger.NewSQLiteLedger(ledgerDB)

	gw, err := gateway.NewHTTPGateway(gateway.Options{
		BaseURL: c.GatewayBaseURL,
		APIKey:  c.GatewayAPIKey,
		Logger:  logger,
	})
	if err != nil {
		_ = ledgerDB.Close()
		return nil, err
	}

	// The table API authenticates with the caller's current access token.
	token := func() string {
		s, err := gw.Session(context.Background())
		if err != nil || s == nil {
			return ""
		}
		return s.AccessToken
	}

	var (
		store   profiles.Store
		votes   community.VoteStore
		tableDB *sql.DB
	)
	if c.DatabaseDSN != "" {
		tableDB, err = sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			_ = gw.Close()
			_ = ledgerDB.Close()
			return nil, fmt.Errorf("opening table database: %w", err)
		}
		store = profiles.NewPostgresStore(tableDB)
		votes = community.NewPostgresVoteStore(tableDB)
	} else {
		store = profiles.NewRESTStore(c.RestBaseURL, c.GatewayAPIKey, http.DefaultClient, token)
		votes = community.NewRESTVoteStore(c.RestBaseURL, c.GatewayAPIKey, http.DefaultClient, token)
	}

	sink := NewTerminalSink()

	ctrl := session.New(session.Options{
		Gateway:        gw,
		Profiles:       store,
		Votes:          votes,
		Ledger:         led,
		Nav:            nav.NewGuard(sink),
		Notifier:       TerminalNotifier{},
		Logger:         logger,
		LoadingTimeout: c.LoadingTimeout,
		CurrentPath:    sink.Current,
	})

	av := avatars.NewService(store, avatars.Config{
		Region:        c.S3Region,
		AccessKey:     c.S3AccessKey,
		SecretKey:     c.S3SecretKey,
		BaseEndpoint:  c.S3BaseEndpoint,
		Bucket:        c.S3Bucket,
		PublicBaseURL: c.S3PublicBaseURL,
	}, http.DefaultClient, logger)

	return &App{
		config:     c,
		gw:         gw,
		controller: ctrl,
		profiles:   store,
		votes:      votes,
		avatars:    av,
		ledger:     led,
		sink:       sink,
		log:        logger,
		reader:     bufio.NewReader(os.Stdin),
		ledgerDB:   ledgerDB,
		tableDB:    tableDB,
	}, nil
}

// Run starts the session controller and the REPL, and tears everything down
// when the user leaves.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	a.controller.Start(ctx)
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) close() {
	_ = a.controller.Close()
	_ = a.gw.Close()
	_ = a.ledgerDB.Close()
	if a.tableDB != nil {
		_ = a.tableDB.Close()
	}
}

func (a *App) isAuthenticated() bool {
	snap := a.controller.Snapshot()
	return snap.User != nil && !snap.Loading
}

func (a *App) status() string {
	snap := a.controller.Snapshot()
	s := a.sink.Current()
	if snap.User != nil {
		s = fmt.Sprintf("%s %s", snap.User.Email, s)
	}
	return fmt.Sprintf("(%s)", s)
}
