package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatpay/internal/chain"
	"chatpay/internal/config"
	"chatpay/internal/core"
	"chatpay/internal/db"
	"chatpay/internal/http/handler"
	"chatpay/internal/http/handler/middleware"
	"chatpay/internal/http/payload"
	"chatpay/internal/http/server"
	"chatpay/internal/lock"
	"chatpay/internal/notify"
	"chatpay/internal/price"
	"chatpay/internal/registry"
	"chatpay/internal/repository"
	"chatpay/internal/wallet"
	"chatpay/pkg/jwt"
	"chatpay/pkg/log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap/zapcore"
)

func Start() error {
	logger := log.NewZapLogger("chatpay", zapcore.InfoLevel)

	config, err := config.NewApp()
	if err != nil {
		logger.Errorw("failed to create config", "error", err)
		return err
	}

	dbConn, err := db.NewPostgresDB(config.DBConnectionURL)
	if err != nil {
		logger.Errorw("failed to connect to database", "error", err)
		return err
	}

	// jwt service
	jwtService := jwt.NewJWTService([]byte(config.JWTSecret))

	// repository
	repo := repository.NewWalletRepository(dbConn)

	err = repo.MigrateAndSeed(context.Background())
	if err != nil {
		logger.Errorw("failed to migrate and seed database", "error", err)
		return err
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	// network/token registry
	reg := registry.NewService(logger, repo)
	if err := reg.Refresh(appCtx); err != nil {
		logger.Errorw("failed to load network registry", "error", err)
		return err
	}
	reg.Start(appCtx, config.RegistryRefresh)

	signerKey, err := crypto.HexToECDSA(config.SignerPrivateKey)
	if err != nil {
		logger.Errorw("failed to parse signer private key", "error", err)
		return err
	}

	// one chain service per configured network
	chains := make(map[int64]*chain.Service)
	for _, network := range reg.Networks() {
		client, err := ethclient.Dial(network.RPCURL)
		if err != nil {
			logger.Errorw("rpc connection failed", "error", err, "network", network.Name)
			return err
		}

		chainService, err := chain.NewService(client, signerKey, chain.NetworkParams{
			ChainID:         network.ChainID,
			Router:          network.Router,
			Paymaster:       network.Paymaster,
			ReceiptTimeout:  config.ReceiptTimeout,
			ReceiptInterval: config.ReceiptInterval,
		})
		if err != nil {
			logger.Errorw("failed to create chain service", "error", err, "network", network.Name)
			return err
		}

		chains[network.ChainID] = chainService
	}

	// token prices
	prices := price.NewService(logger, &http.Client{}, config.PriceAPIURL, reg)
	if err := prices.Refresh(appCtx); err != nil {
		logger.Errorw("initial price refresh failed", "error", err)
	}
	prices.Start(appCtx, config.PriceRefresh)

	notifier := notify.NewDispatcher(logger, &http.Client{}, config.BotWebhookURL)
	locks := lock.NewManager(logger, repo)
	wallets := wallet.NewProvisioner()

	// orchestrator
	payments := core.NewOrchestrator(
		logger,
		repo,
		locks,
		&chainProvider{services: chains},
		wallets,
		notifier,
		reg,
		prices,
		jwtService)

	// handler
	payHlr := handler.NewPaymentHandler(
		logger,
		payload.DecodeValidator{},
		payments,
		config.DefaultChainID)

	// middleware
	mux := http.NewServeMux()
	hdlr := middleware.NewLoggingMiddleware(logger).Logging(mux)
	hdlr = middleware.NewRequestIDMiddleware().RequestID(hdlr)

	// register routes
	mux.HandleFunc(handler.Authenticate, payHlr.HandleAuthenticate)
	mux.HandleFunc(handler.MakeTransaction, payHlr.HandleMakeTransaction)
	mux.HandleFunc(handler.MakeSwap, payHlr.HandleMakeSwap)
	mux.HandleFunc(handler.GetBalance, payHlr.HandleGetBalance)
	mux.HandleFunc(handler.GetNetworks, payHlr.HandleGetNetworks)
	mux.HandleFunc(handler.GetPrices, payHlr.HandleGetPrices)
	mux.HandleFunc(handler.GetTransactions, payHlr.HandleGetTransactions)

	srv := server.NewHTTP(logger, hdlr, config.Port)
	return run(srv)
}

// chainProvider hands out the per-network chain service built at startup.
type chainProvider struct {
	services map[int64]*chain.Service
}

func (p *chainProvider) ForChain(chainID int64) (core.ChainService, error) {
	svc, ok := p.services[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chain id %d", core.ErrUnknownNetwork, chainID)
	}
	return svc, nil
}

func run(server *server.HTTPServer) error {
	// expect a signal to gracefully shutdown the server
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := server.Run()

	var err error
	select {
	case <-sig:
	case err = <-errChan:
	}

	sdErr := server.Shutdown()
	if err == http.ErrServerClosed && sdErr != nil {
		return fmt.Errorf("server shutdown: %w", sdErr)
	}

	return err
}
