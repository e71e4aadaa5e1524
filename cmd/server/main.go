package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	authapp "storyverse-server/internal/application/auth"
	ledgerapp "storyverse-server/internal/application/ledger"
	reconcileapp "storyverse-server/internal/application/reconcile"
	ruleapp "storyverse-server/internal/application/rewardrule"
	runapp "storyverse-server/internal/application/run"
	"storyverse-server/internal/domain/service"
	"storyverse-server/internal/infrastructure/config"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
	"storyverse-server/internal/infrastructure/persistence/mysql"
	"storyverse-server/internal/presentation/rest"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("storyverse-server")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("storyverse-server")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// リポジトリの初期化
	walletRepo := mysql.NewWalletRepository(db)
	ledgerRepo := mysql.NewLedgerRepository(db)
	ruleRepo := mysql.NewRewardRuleRepository(db)
	runRepo := mysql.NewRunRepository(db)
	nodeRepo := mysql.NewStoryNodeRepository(db)
	userRepo := mysql.NewUserRepository(db)

	// トランザクションマネージャーの初期化
	txManager := mysql.NewTransactionManager(db)

	// ドメインサービスの初期化
	gateService := service.NewGateService(runRepo)

	// アプリケーションサービスの初期化
	authAppService := authapp.NewAuthApplicationService(&cfg.JWT, logger)

	ledgerAppService := ledgerapp.NewLedgerApplicationService(
		walletRepo,
		ledgerRepo,
		ruleRepo,
		userRepo,
		txManager,
		logger,
		metrics,
	)

	ruleAppService := ruleapp.NewRewardRuleApplicationService(
		ruleRepo,
		logger,
	)

	runAppService := runapp.NewRunApplicationService(
		runRepo,
		nodeRepo,
		userRepo,
		walletRepo,
		ledgerRepo,
		txManager,
		gateService,
		ledgerAppService,
		cfg.Reward.ChapterUnlockCost,
		cfg.Reward.RatingRuleKey,
		logger,
		metrics,
	)

	reconcileAppService := reconcileapp.NewReconcileApplicationService(
		walletRepo,
		ledgerRepo,
		logger,
		metrics,
	)

	// REST APIルーターの初期化
	router, err := rest.NewRouter(
		cfg,
		logger,
		metrics,
		authAppService,
		ledgerAppService,
		ruleAppService,
		runAppService,
	)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// 残高照合ジョブのスケジュール設定
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Reward.ReconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := reconcileAppService.Sweep(ctx); err != nil {
			log.Printf("Reconciliation sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule reconciliation job: %v", err)
	}
	scheduler.Start()

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		log.Printf("REST API server starting on %s", address)
		if err := router.Start(address); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// シグナルを待機
	<-quit
	log.Println("Shutting down server...")

	// 照合ジョブの停止（実行中のジョブは完了を待つ）
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// REST APIサーバーのシャットダウン
	if err := router.Shutdown(); err != nil {
		log.Printf("Error shutting down REST API server: %v", err)
	}

	log.Println("Server stopped")
}
