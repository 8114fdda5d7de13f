// Command validator runs the Bundlr cosigner daemon: it optionally serves
// the HTTP API and optionally runs the background cron jobs, sharing one
// database connection, key manager, and validator state between both.
package main

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bundlr-network/validator/pkg/arweave"
	"github.com/bundlr-network/validator/pkg/config"
	"github.com/bundlr-network/validator/pkg/contractgateway"
	"github.com/bundlr-network/validator/pkg/cosign"
	"github.com/bundlr-network/validator/pkg/database"
	"github.com/bundlr-network/validator/pkg/keymanager"
	"github.com/bundlr-network/validator/pkg/scheduler"
	"github.com/bundlr-network/validator/pkg/server"
	"github.com/bundlr-network/validator/pkg/statusmirror"
	"github.com/bundlr-network/validator/pkg/validatorstate"
)

func main() {
	log.SetFlags(log.LstdFlags)
	logger := log.New(log.Writer(), "[Validator] ", log.LstdFlags)

	var (
		noCron           = flag.Bool("no-cron", false, "disable the background cron jobs")
		noServer         = flag.Bool("no-server", false, "disable the HTTP server")
		databaseURL      = flag.String("database-url", "", "PostgreSQL connection string (required)")
		listenAddr       = flag.String("listen", "0.0.0.0:42069", "HTTP listen address")
		bundlerURL       = flag.String("bundler-url", "", "remote bundler base URL (required)")
		validatorKeyPath = flag.String("validator-key", "", "path to the validator's PEM-encoded RSA private key")
		arweaveURL       = flag.String("arweave-url", "", "Arweave gateway base URL (defaults to the bundler's own gateway)")
		contractGateway  = flag.String("contract-gateway", "http://localhost:3000", "contract gateway base URL")
		configPath       = flag.String("config", "", "optional YAML config file overlaid on the environment")
	)
	flag.Parse()

	if *bundlerURL == "" {
		logger.Fatal("--bundler-url is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if err := config.ApplyFile(cfg, *configPath); err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if *databaseURL != "" {
		cfg.DatabaseURL = *databaseURL
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *validatorKeyPath != "" {
		cfg.KeyPath = *validatorKeyPath
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("--database-url is required (or set DATABASE_URL)")
	}

	gatewayURL := *arweaveURL
	if gatewayURL == "" {
		gatewayURL = deriveArweaveURL(*bundlerURL, logger)
	}

	bundlerPub, err := fetchBundlerPublicKey(*bundlerURL)
	if err != nil {
		logger.Fatalf("failed to fetch bundler public key: %v", err)
	}

	validatorKey, err := keymanager.LoadOrGenerate(cfg.KeyPath)
	if err != nil {
		logger.Fatalf("failed to load or generate validator key: %v", err)
	}
	keys, err := keymanager.New(validatorKey, bundlerPub)
	if err != nil {
		logger.Fatalf("failed to initialize key manager: %v", err)
	}
	logger.Printf("validator address: %s, bundler address: %s", keys.ValidatorAddress(), keys.BundlerAddress())

	dbClient, err := database.NewClient(cfg, database.WithLogger(
		log.New(log.Writer(), "[Database] ", log.LstdFlags),
	))
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(context.Background()); err != nil {
		logger.Fatalf("failed to run database migrations: %v", err)
	}

	txs := database.NewTransactionRepository(dbClient)
	bundles := database.NewBundleRepository(dbClient)
	state := validatorstate.New()
	arweaveClient := arweave.NewClient(gatewayURL, arweave.WithLogger(
		log.New(log.Writer(), "[Arweave] ", log.LstdFlags),
	))
	gateway := contractgateway.New(*contractGateway, http.DefaultClient)
	cosignService := cosign.New(keys, state, txs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirror, err := statusmirror.NewClient(ctx, &statusmirror.ClientConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		Enabled:         cfg.FirestoreEnabled,
		Logger:          log.New(log.Writer(), "[StatusMirror] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("failed to initialize status mirror: %v", err)
	}
	defer mirror.Close()

	var sched *scheduler.Scheduler
	if !*noCron {
		sched = scheduler.New()
		sched.Add(scheduler.Job{
			Name:     "check contract updates",
			Interval: cfg.ContractSyncInterval,
			Run:      scheduler.ContractSyncJob(gateway, state, keys.ValidatorAddress()),
		})
		sched.Add(scheduler.Job{
			Name:     "validate transactions",
			Interval: cfg.TransactionCheckInterval,
			Run:      scheduler.BundlerValidationJob(arweaveClient, txs, bundles, state, keys.BundlerAddress()),
		})
		sched.Add(scheduler.Job{
			Name:     "clear old transactions",
			Interval: cfg.PruneInterval,
			Run:      scheduler.PruneJob(txs, state),
		})
		sched.Add(scheduler.Job{
			Name:     "mirror status",
			Interval: cfg.NetworkSyncInterval,
			Run:      scheduler.StatusMirrorJob(mirror, state, cfg.ValidatorID, keys.ValidatorAddress()),
		})
		go sched.Start(ctx)
		logger.Println("cron scheduler started")
	}

	var httpServer *server.Server
	if !*noServer {
		httpServer = server.New(server.Config{
			ListenAddr: cfg.ListenAddr,
			Version:    "1.0.0",
			Keys:       keys,
			State:      state,
			Txs:        txs,
			DB:         dbClient,
			Cosign:     cosignService,
		})
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Fatalf("http server failed: %v", err)
			}
		}()
		logger.Printf("http server listening on %s", cfg.ListenAddr)
	}

	waitForIdleShutdown(ctx, cancel, state, logger)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http server shutdown error: %v", err)
		}
	}
	logger.Println("validator stopped")
}

// waitForIdleShutdown blocks until an interrupt/term signal arrives while
// the validator's role is Idle. A signal received while the role is
// Leader or Cosigner is logged and ignored, since the validator may be
// mid-duty for the current epoch; the caller must send another signal
// once the role has returned to Idle.
func waitForIdleShutdown(ctx context.Context, cancel context.CancelFunc, state *validatorstate.State, logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			if state.Role() == validatorstate.RoleIdle {
				logger.Println("shutdown signal received while idle, stopping")
				cancel()
				return
			}
			logger.Printf("shutdown signal received while role=%s, ignoring until idle", state.Role())
		}
	}
}

// deriveArweaveURL falls back to the bundler's own declared gateway URL
// when no --arweave-url override is given.
func deriveArweaveURL(bundlerURL string, logger *log.Logger) string {
	resp, err := http.Get(bundlerURL + "/info")
	if err != nil {
		logger.Fatalf("failed to fetch bundler info to derive arweave URL: %v", err)
	}
	defer resp.Body.Close()

	var info struct {
		Gateway string `json:"gateway"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		logger.Fatalf("failed to decode bundler info: %v", err)
	}
	if info.Gateway == "" {
		logger.Fatal("bundler info did not include a gateway URL; pass --arweave-url explicitly")
	}
	return info.Gateway
}

func fetchBundlerPublicKey(bundlerURL string) (*rsa.PublicKey, error) {
	resp, err := http.Get(bundlerURL + "/pubkey")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bundler public key: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundler public key response: %w", err)
	}

	return keymanager.ParsePublicKeyPEM(data)
}
