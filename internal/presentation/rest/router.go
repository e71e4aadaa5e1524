package rest

import (
	authapp "storyverse-server/internal/application/auth"
	ledgerapp "storyverse-server/internal/application/ledger"
	ruleapp "storyverse-server/internal/application/rewardrule"
	runapp "storyverse-server/internal/application/run"
	"storyverse-server/internal/infrastructure/config"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
	"storyverse-server/internal/presentation/rest/handler"
	restmiddleware "storyverse-server/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router REST APIルーター
type Router struct {
	echo          *echo.Echo
	authHandler   *handler.AuthHandler
	ledgerHandler *handler.LedgerHandler
	ruleHandler   *handler.RuleHandler
	runHandler    *handler.RunHandler
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	authService *authapp.AuthApplicationService,
	ledgerService *ledgerapp.LedgerApplicationService,
	ruleService *ruleapp.RewardRuleApplicationService,
	runService *runapp.RunApplicationService,
) (*Router, error) {
	e := echo.New()

	// Echoのデフォルトエラーハンドラーを無効化（カスタムエラーハンドラーを使用）
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		// エラーハンドリングミドルウェアで処理される
	}

	// ミドルウェアの設定
	setupMiddleware(e, cfg, logger, metrics)

	// ハンドラーの作成
	authHandler := handler.NewAuthHandler(authService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	runHandler := handler.NewRunHandler(runService)

	// ルーティングの設定
	setupRoutes(e, cfg, logger, authHandler, ledgerHandler, ruleHandler, runHandler)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{
		echo:          e,
		authHandler:   authHandler,
		ledgerHandler: ledgerHandler,
		ruleHandler:   ruleHandler,
		runHandler:    runHandler,
	}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	// リカバリーミドルウェア
	e.Use(middleware.Recover())

	// CORS設定
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // 本番環境では適切に設定
		AllowMethods: []string{echo.GET, echo.POST, echo.PATCH, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-API-Key"},
	}))

	// リクエストIDの設定
	e.Use(middleware.RequestID())

	// セキュリティヘッダー
	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// トレーシングミドルウェア
	e.Use(restmiddleware.TracingMiddleware())

	// ログミドルウェア
	e.Use(restmiddleware.LoggingMiddleware(logger))

	// メトリクスミドルウェア
	e.Use(restmiddleware.MetricsMiddleware(metrics))

	// エラーハンドリングミドルウェア
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *otelinfra.Logger,
	authHandler *handler.AuthHandler,
	ledgerHandler *handler.LedgerHandler,
	ruleHandler *handler.RuleHandler,
	runHandler *handler.RunHandler,
) {
	api := e.Group("/api")

	// 認証エンドポイント（認証不要）
	api.POST("/auth/token", authHandler.GenerateToken)

	// 管理APIグループ（X-API-Key認証）
	adminGroup := api.Group("/admin", restmiddleware.APIKeyMiddleware(&cfg.AdminAPI, logger))
	adminGroup.GET("/coins/summary", ledgerHandler.GetSummaryAdmin)
	adminGroup.GET("/coins/transactions", ledgerHandler.ListTransactions)
	adminGroup.POST("/coins/adjust", ledgerHandler.AdjustBalance)
	adminGroup.POST("/coins/refund", ledgerHandler.RefundTransaction)
	adminGroup.GET("/reward-rules", ruleHandler.ListRules)
	adminGroup.POST("/reward-rules", ruleHandler.CreateRule)
	adminGroup.GET("/reward-rules/:key", ruleHandler.GetRule)
	adminGroup.PATCH("/reward-rules/:key", ruleHandler.UpdateRule)

	// ユーザーAPIグループ（JWT認証）
	authGroup := api.Group("", restmiddleware.AuthMiddleware(&cfg.JWT, logger))
	authGroup.POST("/runs", runHandler.StartRun)
	authGroup.GET("/runs/:runId/current", runHandler.GetCurrent)
	authGroup.POST("/runs/:runId/choose", runHandler.Choose)
	authGroup.POST("/runs/:runId/rate", runHandler.Rate)
	authGroup.POST("/runs/:runId/unlock", runHandler.Unlock)
	authGroup.GET("/me/coins/summary", ledgerHandler.GetMySummary)

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown サーバーをシャットダウン
func (r *Router) Shutdown() error {
	return r.echo.Close()
}
