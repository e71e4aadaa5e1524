package handler

import (
	"net/http"

	ruleapp "storyverse-server/internal/application/rewardrule"

	"github.com/labstack/echo/v4"
)

// RuleHandler リワードルール関連ハンドラー
type RuleHandler struct {
	ruleService *ruleapp.RewardRuleApplicationService
}

// NewRuleHandler 新しいRuleHandlerを作成
func NewRuleHandler(ruleService *ruleapp.RewardRuleApplicationService) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

// ListRules ルール一覧取得ハンドラー（管理API用）
// @Summary リワードルール一覧を取得（管理API）
// @Description 登録済みの全リワードルールを取得します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} RuleListResponse "一覧取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /admin/reward-rules [get]
func (h *RuleHandler) ListRules(c echo.Context) error {
	resp, err := h.ruleService.List(c.Request().Context())
	if err != nil {
		return err
	}

	rules := make([]RuleItem, len(resp.Rules))
	for i, r := range resp.Rules {
		rules[i] = toRuleItem(r)
	}

	return c.JSON(http.StatusOK, RuleListResponse{Rules: rules})
}

// GetRule ルール取得ハンドラー（管理API用）
// @Summary リワードルールを取得（管理API）
// @Description 指定されたキーのリワードルールを取得します
// @Tags admin
// @Accept json
// @Produce json
// @Param key path string true "ルールキー" example(rating_reward)
// @Param X-API-Key header string true "APIキー"
// @Success 200 {object} RuleItem "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "ルールが存在しない"
// @Router /admin/reward-rules/{key} [get]
func (h *RuleHandler) GetRule(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	resp, err := h.ruleService.Get(c.Request().Context(), &ruleapp.GetRuleRequest{Key: key})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toRuleItem(*resp))
}

// CreateRule ルール作成ハンドラー（管理API用）
// @Summary リワードルールを作成（管理API）
// @Description 新しいリワードルールを作成します
// @Tags admin
// @Accept json
// @Produce json
// @Param X-API-Key header string true "APIキー"
// @Param request body CreateRuleRequest true "ルール作成リクエスト"
// @Success 201 {object} RuleItem "作成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 409 {object} ErrorResponse "キーが既に存在する"
// @Router /admin/reward-rules [post]
func (h *RuleHandler) CreateRule(c echo.Context) error {
	var reqBody CreateRuleRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.ruleService.Create(c.Request().Context(), &ruleapp.CreateRuleRequest{
		Key:      reqBody.Key,
		Label:    reqBody.Label,
		Coins:    reqBody.Coins,
		Enabled:  reqBody.Enabled,
		DailyCap: reqBody.DailyCap,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toRuleItem(*resp))
}

// UpdateRule ルール更新ハンドラー（管理API用）
// @Summary リワードルールを部分更新（管理API）
// @Description 指定されたキーのリワードルールを部分更新します
// @Tags admin
// @Accept json
// @Produce json
// @Param key path string true "ルールキー" example(rating_reward)
// @Param X-API-Key header string true "APIキー"
// @Param request body UpdateRuleRequest true "ルール更新リクエスト"
// @Success 200 {object} RuleItem "更新成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 404 {object} ErrorResponse "ルールが存在しない"
// @Router /admin/reward-rules/{key} [patch]
func (h *RuleHandler) UpdateRule(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}

	var reqBody UpdateRuleRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.ruleService.Update(c.Request().Context(), &ruleapp.UpdateRuleRequest{
		Key:           key,
		Label:         reqBody.Label,
		Coins:         reqBody.Coins,
		Enabled:       reqBody.Enabled,
		DailyCap:      reqBody.DailyCap,
		ClearDailyCap: reqBody.ClearDailyCap,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toRuleItem(*resp))
}

// toRuleItem ルールDTOをレスポンスモデルへ変換
func toRuleItem(r ruleapp.RuleDTO) RuleItem {
	return RuleItem{
		Key:       r.Key,
		Label:     r.Label,
		Coins:     r.Coins,
		Enabled:   r.Enabled,
		DailyCap:  r.DailyCap,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
