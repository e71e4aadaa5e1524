package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"

	"storyverse-server/internal/domain/ledger"
	"storyverse-server/internal/domain/rewardrule"
	"storyverse-server/internal/domain/run"
	"storyverse-server/internal/domain/story"
	"storyverse-server/internal/domain/user"
	"storyverse-server/internal/domain/wallet"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// InsufficientCoinsResponse コイン不足エラーレスポンス
// ペイウォール表示に必要な残高と必要額を含む
type InsufficientCoinsResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Available int64  `json:"available"`
	Required  int64  `json:"required"`
}

// ChapterLockedResponse 未解錠チャプターエラーレスポンス
type ChapterLockedResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	ChapterNumber int    `json:"chapterNumber"`
	RequiredCoins int64  `json:"requiredCoins"`
	Available     int64  `json:"available"`
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// エラーハンドリング
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// ペイロード付きのドメインエラー
	var insufficientErr *run.InsufficientCoinsError
	if errors.As(err, &insufficientErr) {
		logger.Warn(ctx, "Insufficient coins", map[string]interface{}{
			"available": insufficientErr.Available,
			"required":  insufficientErr.Required,
		})
		return c.JSON(http.StatusConflict, InsufficientCoinsResponse{
			Error:     "INSUFFICIENT_COINS",
			Message:   err.Error(),
			Available: insufficientErr.Available,
			Required:  insufficientErr.Required,
		})
	}

	var lockedErr *run.ChapterLockedError
	if errors.As(err, &lockedErr) {
		logger.Warn(ctx, "Chapter locked", map[string]interface{}{
			"chapter_number": lockedErr.ChapterNumber,
			"required_coins": lockedErr.RequiredCoins,
			"available":      lockedErr.Available,
		})
		return c.JSON(http.StatusForbidden, ChapterLockedResponse{
			Code:          "CHAPTER_LOCKED",
			Message:       err.Error(),
			ChapterNumber: lockedErr.ChapterNumber,
			RequiredCoins: lockedErr.RequiredCoins,
			Available:     lockedErr.Available,
		})
	}

	// ドメインエラーの判定と処理
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		logger.Warn(ctx, "Insufficient balance", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "insufficient_balance",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrTransactionNotFound) {
		logger.Warn(ctx, "Transaction not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "transaction_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrAlreadyRefunded) {
		logger.Warn(ctx, "Transaction already refunded", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_refunded",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrNotRefundable) {
		logger.Warn(ctx, "Transaction not refundable", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "not_refundable",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrInvalidCoins) || errors.Is(err, ledger.ErrCoinsTooLarge) {
		logger.Warn(ctx, "Invalid coins amount", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_coins",
			Message: err.Error(),
		})
	}

	if errors.Is(err, rewardrule.ErrRuleNotFound) {
		logger.Warn(ctx, "Reward rule not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "rule_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, rewardrule.ErrRuleDisabled) {
		logger.Warn(ctx, "Reward rule disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "rule_disabled",
			Message: err.Error(),
		})
	}

	if errors.Is(err, rewardrule.ErrRuleAlreadyExists) {
		logger.Warn(ctx, "Reward rule already exists", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "rule_already_exists",
			Message: err.Error(),
		})
	}

	if errors.Is(err, rewardrule.ErrInvalidRuleKey) ||
		errors.Is(err, rewardrule.ErrInvalidCoins) ||
		errors.Is(err, rewardrule.ErrInvalidDailyCap) {
		logger.Warn(ctx, "Invalid reward rule", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_rule",
			Message: err.Error(),
		})
	}

	if errors.Is(err, run.ErrRunNotFound) {
		logger.Warn(ctx, "Run not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "run_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, run.ErrRunCompleted) {
		logger.Warn(ctx, "Run already completed", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "run_completed",
			Message: err.Error(),
		})
	}

	if errors.Is(err, run.ErrAlreadyUnlocked) {
		logger.Warn(ctx, "Chapter already unlocked", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_unlocked",
			Message: err.Error(),
		})
	}

	if errors.Is(err, run.ErrAlreadyRated) {
		logger.Warn(ctx, "Node already rated", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_rated",
			Message: err.Error(),
		})
	}

	if errors.Is(err, run.ErrInvalidChapter) ||
		errors.Is(err, run.ErrInvalidGenre) ||
		errors.Is(err, run.ErrInvalidRating) ||
		errors.Is(err, run.ErrInvalidStory) {
		logger.Warn(ctx, "Invalid run request", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	if errors.Is(err, story.ErrNodeNotFound) {
		logger.Warn(ctx, "Story node not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "node_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, user.ErrUserNotFound) {
		logger.Warn(ctx, "User not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "user_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, wallet.ErrInvalidAmount) || errors.Is(err, wallet.ErrInvalidUserID) {
		logger.Warn(ctx, "Invalid wallet request", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}
