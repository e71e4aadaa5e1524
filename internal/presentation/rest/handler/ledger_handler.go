package handler

import (
	"net/http"
	"strconv"

	ledgerapp "storyverse-server/internal/application/ledger"

	"github.com/labstack/echo/v4"
)

// LedgerHandler コイン台帳関連ハンドラー
type LedgerHandler struct {
	ledgerService *ledgerapp.LedgerApplicationService
}

// NewLedgerHandler 新しいLedgerHandlerを作成
func NewLedgerHandler(ledgerService *ledgerapp.LedgerApplicationService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// GetMySummary コインサマリー取得ハンドラー（ユーザーAPI用）
// @Summary 自分のコインサマリーを取得
// @Description 自分の残高・使用済み・獲得済みコインを取得します
// @Tags coins
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} SummaryResponse "サマリー取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /me/coins/summary [get]
func (h *LedgerHandler) GetMySummary(c echo.Context) error {
	// トークンからuser_idを取得
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	resp, err := h.ledgerService.Summary(c.Request().Context(), &ledgerapp.SummaryRequest{
		UserID: userID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		UserID:    resp.UserID,
		Available: resp.Available,
		Used:      resp.Used,
		Earned:    resp.Earned,
	})
}

// GetSummaryAdmin コインサマリー取得ハンドラー（管理API用）
// @Summary コインサマリーを取得（管理API）
// @Description 指定されたユーザーの残高・使用済み・獲得済みコインを取得します
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id query string true "ユーザーID" example(user123)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} SummaryResponse "サマリー取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/coins/summary [get]
func (h *LedgerHandler) GetSummaryAdmin(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	resp, err := h.ledgerService.Summary(c.Request().Context(), &ledgerapp.SummaryRequest{
		UserID: userID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		UserID:    resp.UserID,
		Available: resp.Available,
		Used:      resp.Used,
		Earned:    resp.Earned,
	})
}

// ListTransactions トランザクション一覧取得ハンドラー（管理API用）
// @Summary トランザクション一覧を取得（管理API）
// @Description 指定されたユーザーのトランザクションを新しい順に取得します
// @Tags admin
// @Accept json
// @Produce json
// @Param user_id query string true "ユーザーID" example(user123)
// @Param q query string false "理由・タイプの部分一致フィルタ" example(chapter_unlock)
// @Param limit query int false "取得件数（デフォルト20、最大100）" example(20)
// @Param offset query int false "オフセット" example(0)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} TransactionListResponse "一覧取得成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/coins/transactions [get]
func (h *LedgerHandler) ListTransactions(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit format")
		}
		limit = parsed
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset format")
		}
		offset = parsed
	}

	resp, err := h.ledgerService.ListTransactions(c.Request().Context(), &ledgerapp.ListTransactionsRequest{
		UserID: userID,
		Query:  c.QueryParam("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	transactions := make([]TransactionItem, len(resp.Transactions))
	for i, t := range resp.Transactions {
		transactions[i] = TransactionItem{
			TransactionID: t.TransactionID,
			UserID:        t.UserID,
			Type:          t.Type,
			Coins:         t.Coins,
			BalanceBefore: t.BalanceBefore,
			BalanceAfter:  t.BalanceAfter,
			Reason:        t.Reason,
			RuleKey:       t.RuleKey,
			RefundOfID:    t.RefundOfID,
			CreatedAt:     t.CreatedAt,
		}
	}

	return c.JSON(http.StatusOK, TransactionListResponse{
		Transactions: transactions,
	})
}

// AdjustBalance 残高調整ハンドラー（管理API用）
// @Summary 残高を手動調整（管理API）
// @Description 指定されたユーザーの残高を符号付きデルタで調整します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body AdjustRequest true "残高調整リクエスト"
// @Success 200 {object} AdjustResponse "調整成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "残高不足"
// @Router /admin/coins/adjust [post]
func (h *LedgerHandler) AdjustBalance(c echo.Context) error {
	var reqBody AdjustRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	resp, err := h.ledgerService.Adjust(c.Request().Context(), &ledgerapp.AdjustRequest{
		UserID: reqBody.UserID,
		Delta:  reqBody.Delta,
		Reason: reqBody.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AdjustResponse{
		TransactionID: resp.TransactionID,
		BalanceAfter:  resp.BalanceAfter,
	})
}

// RefundTransaction トランザクション取り消しハンドラー（管理API用）
// @Summary トランザクションを取り消し（管理API）
// @Description 指定されたトランザクションを補償トランザクションで打ち消します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body RefundRequest true "取り消しリクエスト"
// @Success 200 {object} RefundResponse "取り消し成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "トランザクションが存在しない"
// @Failure 409 {object} ErrorResponse "取り消し済み・残高不足"
// @Router /admin/coins/refund [post]
func (h *LedgerHandler) RefundTransaction(c echo.Context) error {
	var reqBody RefundRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.TransactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id is required")
	}

	resp, err := h.ledgerService.Refund(c.Request().Context(), &ledgerapp.RefundRequest{
		TransactionID: reqBody.TransactionID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RefundResponse{
		RefundTransactionID: resp.RefundTransactionID,
		Coins:               resp.Coins,
		BalanceAfter:        resp.BalanceAfter,
	})
}
