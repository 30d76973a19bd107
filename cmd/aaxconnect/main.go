// Package main is the entry point for the aaxconnect client.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkb69/aaxconnect/internal/api"
	"github.com/mkb69/aaxconnect/internal/auth"
	"github.com/mkb69/aaxconnect/internal/config"
	"github.com/mkb69/aaxconnect/internal/license"
	"github.com/mkb69/aaxconnect/internal/store"
	"github.com/mkb69/aaxconnect/internal/store/file"
)

func main() {
	login := flag.Bool("login", false, "run the device registration flow")
	deregister := flag.Bool("deregister", false, "deregister this device")
	deregisterAll := flag.Bool("deregister-all", false, "deregister all devices on the account")
	asin := flag.String("asin", "", "fetch, decrypt and validate a license for this catalog item")
	flag.Parse()

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	st, err := file.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	apiClient := api.NewClient(cfg.Domain,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithLogger(logger))

	ctx := context.Background()

	var runErr error
	switch {
	case *login:
		runErr = runLogin(ctx, cfg, apiClient, st, logger)
	case *deregister || *deregisterAll:
		runErr = runDeregister(ctx, apiClient, st, logger, *deregisterAll, cfg.WithUsername)
	case *asin != "":
		runErr = runLicense(ctx, apiClient, st, logger, *asin)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if runErr != nil {
		logger.Error("command failed", "error", runErr)
		os.Exit(1)
	}
}

// runLogin walks one registration attempt: authorization URL out, redirect
// URL in, code exchanged, credentials persisted.
func runLogin(ctx context.Context, cfg *config.Config, apiClient *api.Client, st store.Store, logger *slog.Logger) error {
	session, err := auth.NewSession(cfg.Domain, cfg.CountryCode, cfg.MarketplaceID, cfg.WithUsername)
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in a browser and sign in:")
	fmt.Println(session.AuthorizeURL())
	fmt.Print("Paste the final redirect URL here: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	code, err := auth.ParseRedirect(strings.TrimSpace(line))
	if err != nil {
		return err
	}

	client := auth.NewRegistrationClient(apiClient, auth.WithRegistrationLogger(logger))
	creds, err := client.Register(ctx, code, session.CodeVerifier, session.DeviceSerial, session.WithUsername)
	if err != nil {
		return err
	}

	if err := st.Auth().Save(ctx, &store.AuthRecord{
		Credentials: creds,
		LocaleCode:  cfg.LocaleCode(),
	}); err != nil {
		return err
	}

	logger.Info("login complete", "data_dir", cfg.DataDir)
	return nil
}

func runDeregister(ctx context.Context, apiClient *api.Client, st store.Store, logger *slog.Logger, all, withUsername bool) error {
	record, err := st.Auth().Load(ctx)
	if err != nil {
		return err
	}

	tokens := auth.NewTokenSource(apiClient, record.Credentials, auth.WithTokenLogger(logger))
	accessToken, err := tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	client := auth.NewRegistrationClient(apiClient, auth.WithRegistrationLogger(logger))
	if _, err := client.Deregister(ctx, accessToken, all, withUsername); err != nil {
		return err
	}
	if err := st.Auth().Delete(ctx); err != nil {
		return err
	}

	logger.Info("device deregistered", "all", all)
	return nil
}

func runLicense(ctx context.Context, apiClient *api.Client, st store.Store, logger *slog.Logger, asin string) error {
	record, err := st.Auth().Load(ctx)
	if err != nil {
		return err
	}

	// Refresh-then-use: a stale token is exchanged before the license call,
	// and the refreshed credentials are written back.
	tokens := auth.NewTokenSource(apiClient, record.Credentials, auth.WithTokenLogger(logger))
	if _, err := tokens.AccessToken(ctx); err != nil {
		return err
	}
	creds := tokens.Credentials()
	record.Credentials = &creds
	if err := st.Auth().Save(ctx, record); err != nil {
		return err
	}

	client, err := license.NewRequestClient(apiClient, &creds, license.WithRequestLogger(logger))
	if err != nil {
		return err
	}
	info, err := client.FetchAndDecrypt(ctx, &creds, asin)
	if err != nil {
		return err
	}
	if err := st.Licenses().Save(ctx, asin, info); err != nil {
		return err
	}

	result := license.Validate(info, time.Now())
	logger.Info("license evaluated",
		"asin", asin,
		"valid", result.Valid,
		"status", result.Status,
		"message", result.Message)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
