package handler

import (
	"net/http"

	runapp "storyverse-server/internal/application/run"

	"github.com/labstack/echo/v4"
)

// RunHandler ストーリーラン関連ハンドラー
type RunHandler struct {
	runService *runapp.RunApplicationService
}

// NewRunHandler 新しいRunHandlerを作成
func NewRunHandler(runService *runapp.RunApplicationService) *RunHandler {
	return &RunHandler{
		runService: runService,
	}
}

// StartRun ラン開始ハンドラー
// @Summary 新しいランを開始
// @Description 指定されたストーリーの新しいランをステップ1から開始します
// @Tags runs
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body StartRunRequest true "ラン開始リクエスト"
// @Success 201 {object} RunResponse "開始成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /runs [post]
func (h *RunHandler) StartRun(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	var reqBody StartRunRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.runService.StartRun(c.Request().Context(), &runapp.StartRunRequest{
		UserID: userID,
		Story:  reqBody.Story,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, RunResponse{
		RunID:       resp.RunID,
		Story:       resp.Story,
		CurrentStep: resp.CurrentStep,
		Completed:   resp.Completed,
	})
}

// GetCurrent 現在チャプター取得ハンドラー
// @Summary ランの現在チャプターを取得
// @Description 現在ステップのノード本文、またはジャンル未選択時は選択肢を返します
// @Tags runs
// @Accept json
// @Produce json
// @Security Bearer
// @Param runId path string true "ランID"
// @Success 200 {object} CurrentResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 403 {object} ErrorResponse "チャプター未解錠"
// @Failure 404 {object} ErrorResponse "ランが存在しない"
// @Router /runs/{runId}/current [get]
func (h *RunHandler) GetCurrent(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	runID := c.Param("runId")
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "runId is required")
	}

	resp, err := h.runService.Current(c.Request().Context(), &runapp.CurrentRequest{
		UserID: userID,
		RunID:  runID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, CurrentResponse{
		RunID:       resp.RunID,
		Story:       resp.Story,
		CurrentStep: resp.CurrentStep,
		Completed:   resp.Completed,
		Node:        toNodeItem(resp.Node),
		Genres:      resp.Genres,
	})
}

// Choose ジャンル選択ハンドラー
// @Summary 現在ステップのジャンルを選択
// @Description ジャンルを選択してノード本文を受け取り、ランを次のステップへ進めます
// @Tags runs
// @Accept json
// @Produce json
// @Security Bearer
// @Param runId path string true "ランID"
// @Param request body ChooseRequest true "ジャンル選択リクエスト"
// @Success 200 {object} ChooseResponse "選択成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 403 {object} ErrorResponse "チャプター未解錠"
// @Failure 404 {object} ErrorResponse "ラン・ノードが存在しない"
// @Failure 409 {object} ErrorResponse "ランが完了済み"
// @Router /runs/{runId}/choose [post]
func (h *RunHandler) Choose(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	runID := c.Param("runId")
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "runId is required")
	}

	var reqBody ChooseRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.runService.Choose(c.Request().Context(), &runapp.ChooseRequest{
		UserID: userID,
		RunID:  runID,
		Genre:  reqBody.Genre,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ChooseResponse{
		RunID:       resp.RunID,
		Node:        toNodeItem(resp.Node),
		CurrentStep: resp.CurrentStep,
		Completed:   resp.Completed,
	})
}

// Rate ノード評価ハンドラー
// @Summary チャプターノードを評価
// @Description ノードを1〜5で評価し、リワードルールに従ってコインを獲得します
// @Tags runs
// @Accept json
// @Produce json
// @Security Bearer
// @Param runId path string true "ランID"
// @Param request body RateRequest true "評価リクエスト"
// @Success 200 {object} RateResponse "評価成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "ラン・ノードが存在しない"
// @Failure 409 {object} ErrorResponse "評価済み"
// @Router /runs/{runId}/rate [post]
func (h *RunHandler) Rate(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	runID := c.Param("runId")
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "runId is required")
	}

	var reqBody RateRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if reqBody.NodeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "node_id is required")
	}

	resp, err := h.runService.Rate(c.Request().Context(), &runapp.RateRequest{
		UserID: userID,
		RunID:  runID,
		NodeID: reqBody.NodeID,
		Rating: reqBody.Rating,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RateResponse{
		OK:           resp.OK,
		CoinsAwarded: resp.CoinsAwarded,
	})
}

// Unlock チャプター解錠ハンドラー
// @Summary 有料チャプターをコインで解錠
// @Description コインを消費して指定チャプターを解錠します
// @Tags runs
// @Accept json
// @Produce json
// @Security Bearer
// @Param runId path string true "ランID"
// @Param request body UnlockRequest true "解錠リクエスト"
// @Success 200 {object} UnlockResponse "解錠成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "ランが存在しない"
// @Failure 409 {object} InsufficientCoinsResponse "コイン不足・解錠済み"
// @Router /runs/{runId}/unlock [post]
func (h *RunHandler) Unlock(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}

	runID := c.Param("runId")
	if runID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "runId is required")
	}

	var reqBody UnlockRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.runService.Unlock(c.Request().Context(), &runapp.UnlockRequest{
		UserID:        userID,
		RunID:         runID,
		ChapterNumber: reqBody.ChapterNumber,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UnlockResponse{
		Unlocked:      resp.Unlocked,
		TransactionID: resp.TransactionID,
		BalanceAfter:  resp.BalanceAfter,
	})
}

// toNodeItem ノードDTOをレスポンスモデルへ変換
func toNodeItem(n *runapp.NodeDTO) *NodeItem {
	if n == nil {
		return nil
	}
	return &NodeItem{
		NodeID: n.NodeID,
		Story:  n.Story,
		StepNo: n.StepNo,
		Genre:  n.Genre,
		Title:  n.Title,
		Body:   n.Body,
	}
}
