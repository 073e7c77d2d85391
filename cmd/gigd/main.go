package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"gigchain/config"
	"gigchain/core"
	"gigchain/gateway/middleware"
	"gigchain/gateway/routes"
	"gigchain/observability/logging"
	"gigchain/rpc"
	"gigchain/storage"
)

const gatewaySecretEnv = "GIG_GATEWAY_SECRET"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GIG_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup("gigd", env, logging.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "err", err, "dir", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	node := core.NewNode(db)
	logger.Info("node initialized", "network", cfg.NetworkName, "data_dir", cfg.DataDir)

	gatewaySecret := strings.TrimSpace(os.Getenv(gatewaySecretEnv))
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    gatewaySecret != "",
		HMACSecret: gatewaySecret,
		Issuer:     cfg.NetworkName,
	}, logger)
	if gatewaySecret == "" {
		logger.Warn("gateway auth disabled, set " + gatewaySecretEnv + " to require tokens")
	}

	gatewayHandler := routes.New(routes.Config{
		Node:          node,
		Authenticator: auth,
		Logger:        logger,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting REST gateway", "addr", cfg.GatewayAddress)
		errCh <- http.ListenAndServe(cfg.GatewayAddress, gatewayHandler)
	}()
	go func() {
		errCh <- rpc.NewServer(node).Start(cfg.RPCAddress)
	}()

	logger.Error("server exited", "err", <-errCh)
	os.Exit(1)
}
