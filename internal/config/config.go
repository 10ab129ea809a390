package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var errEnvVarNotFound error = errors.New("environment variable not found")

const (
	apiPortEnvKey      = "API_PORT"
	dbConnEnvKey       = "DB_CONNECTION_URL"
	jwtSecretEnvKey    = "JWT_SECRET"
	signerKeyEnvKey    = "SIGNER_PRIVATE_KEY"
	botWebhookEnvKey   = "BOT_WEBHOOK_URL"
	priceAPIEnvKey     = "PRICE_API_URL"
	receiptTimeoutKey  = "RECEIPT_TIMEOUT_SECONDS"
	receiptIntervalKey = "RECEIPT_POLL_INTERVAL_SECONDS"
	registryRefreshKey = "REGISTRY_REFRESH_SECONDS"
	priceRefreshKey    = "PRICE_REFRESH_SECONDS"
	defaultChainIDKey  = "DEFAULT_CHAIN_ID"
)

type App struct {
	Port             string
	DBConnectionURL  string
	JWTSecret        string
	SignerPrivateKey string
	BotWebhookURL    string
	PriceAPIURL      string
	ReceiptTimeout   time.Duration
	ReceiptInterval  time.Duration
	RegistryRefresh  time.Duration
	PriceRefresh     time.Duration
	DefaultChainID   int64
}

func NewApp() (App, error) {

	port, ok := os.LookupEnv(apiPortEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, apiPortEnvKey)
	}

	dbConn, ok := os.LookupEnv(dbConnEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, dbConnEnvKey)
	}

	jwtSecret, ok := os.LookupEnv(jwtSecretEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, jwtSecretEnvKey)
	}

	signerKey, ok := os.LookupEnv(signerKeyEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, signerKeyEnvKey)
	}

	botWebhook, ok := os.LookupEnv(botWebhookEnvKey)
	if !ok {
		return App{}, fmt.Errorf("%w: %s", errEnvVarNotFound, botWebhookEnvKey)
	}

	priceAPI, ok := os.LookupEnv(priceAPIEnvKey)
	if !ok {
		priceAPI = "https://coins.llama.fi"
	}

	defaultChainID, err := lookupInt64(defaultChainIDKey, 137)
	if err != nil {
		return App{}, err
	}

	receiptTimeout, err := lookupSeconds(receiptTimeoutKey, 120*time.Second)
	if err != nil {
		return App{}, err
	}

	receiptInterval, err := lookupSeconds(receiptIntervalKey, 3*time.Second)
	if err != nil {
		return App{}, err
	}

	registryRefresh, err := lookupSeconds(registryRefreshKey, 300*time.Second)
	if err != nil {
		return App{}, err
	}

	priceRefresh, err := lookupSeconds(priceRefreshKey, 60*time.Second)
	if err != nil {
		return App{}, err
	}

	return App{
		Port:             port,
		DBConnectionURL:  dbConn,
		JWTSecret:        jwtSecret,
		SignerPrivateKey: signerKey,
		BotWebhookURL:    botWebhook,
		PriceAPIURL:      priceAPI,
		ReceiptTimeout:   receiptTimeout,
		ReceiptInterval:  receiptInterval,
		RegistryRefresh:  registryRefresh,
		PriceRefresh:     priceRefresh,
		DefaultChainID:   defaultChainID,
	}, nil
}

func lookupSeconds(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(seconds) * time.Second, nil
}

func lookupInt64(key string, fallback int64) (int64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return val, nil
}
