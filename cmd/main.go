package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/config"
	"github.com/ActorLancer/Food-Info-Trace/controllers"
	"github.com/ActorLancer/Food-Info-Trace/routes"
	"github.com/ActorLancer/Food-Info-Trace/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.InitDB(cfg); err != nil {
		return err
	}

	var archive services.Archiver
	var notifier services.Notifier
	if cfg.S3Bucket != "" || cfg.SNSTopicARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return err
		}
		archive, notifier = awsSinks(cfg, awsCfg)
	}

	var chain services.HashReader
	if cfg.ChainEnabled() {
		ec, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
		if err != nil {
			return err
		}
		defer ec.Close()
		contract, err := blockchain.NewContractClient(cfg.ContractAddress, ec, log)
		if err != nil {
			return err
		}
		checkChainID(ctx, ec, cfg.ExpectedChainID, log)
		chain = contract
		log.Info("on-chain verification enabled",
			zap.String("rpc", cfg.ChainRPCURL),
			zap.String("contract", contract.Address().Hex()))
	} else {
		log.Warn("CHAIN_RPC_URL or CONTRACT_ADDRESS not set; verify endpoint disabled")
	}

	hub := services.NewRealtimeHub(log)
	bus := services.NewEventBus(hub, notifier, log)
	records := services.NewFoodRecordService(config.DB, bus, archive, log)
	records.VerifyHashOnCreate = cfg.VerifyMetadataHash
	verification := services.NewVerificationService(config.DB, chain, bus, log)

	r := routes.SetupRouter(routes.Deps{
		Records:   controllers.NewFoodRecordController(records, verification),
		Realtime:  controllers.NewRealtimeController(hub),
		JWTSecret: cfg.JWTSecret,
		Log:       log,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func awsSinks(cfg *config.Config, awsCfg aws.Config) (services.Archiver, services.Notifier) {
	var archive services.Archiver
	var notifier services.Notifier
	if cfg.S3Bucket != "" {
		archive = services.NewS3Archive(awsCfg, cfg.S3Bucket)
	}
	if cfg.SNSTopicARN != "" {
		notifier = services.NewSNSNotifier(awsCfg, cfg.SNSTopicARN)
	}
	return archive, notifier
}

func checkChainID(ctx context.Context, ec *ethclient.Client, expected string, log *zap.Logger) {
	want, ok := blockchain.ParseChainID(expected)
	if !ok {
		log.Warn("EXPECTED_CHAIN_ID is not a chain id", zap.String("value", expected))
		return
	}
	got, err := ec.ChainID(ctx)
	if err != nil {
		log.Warn("read node chain id", zap.Error(err))
		return
	}
	if got.Cmp(want) != 0 {
		log.Warn("node is on an unexpected chain",
			zap.String("expected", want.String()),
			zap.String("actual", got.String()))
	}
}
