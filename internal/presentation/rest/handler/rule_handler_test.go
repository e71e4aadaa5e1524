package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ruleapp "storyverse-server/internal/application/rewardrule"
	"storyverse-server/internal/domain/rewardrule"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
)

func newRuleHandler(t *testing.T) (*RuleHandler, *MockRewardRuleRepository, *otelinfra.Logger) {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := otelinfra.NewLogger(tracer)

	mockRuleRepo := new(MockRewardRuleRepository)
	appService := ruleapp.NewRewardRuleApplicationService(mockRuleRepo, logger)

	return NewRuleHandler(appService), mockRuleRepo, logger
}

func capPtr(v int64) *int64 {
	return &v
}

func TestRuleHandler_ListRules(t *testing.T) {
	e := echo.New()
	handler, mockRuleRepo, logger := newRuleHandler(t)

	rules := []*rewardrule.RewardRule{
		rewardrule.MustNewRewardRule("daily_login", "ログインボーナス", 5, true, nil),
		rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, capPtr(10)),
	}
	mockRuleRepo.On("FindAll", mock.Anything).Return(rules, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/reward-rules", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	invokeHandler(t, logger, c, e, handler.ListRules)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response RuleListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Rules, 2)
	assert.Equal(t, "daily_login", response.Rules[0].Key)
	require.NotNil(t, response.Rules[1].DailyCap)
	assert.Equal(t, int64(10), *response.Rules[1].DailyCap)
}

func TestRuleHandler_GetRule(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		setupMock      func(*MockRewardRuleRepository)
		expectedStatus int
	}{
		{
			name: "正常系: ルール取得成功",
			key:  "rating_reward",
			setupMock: func(m *MockRewardRuleRepository) {
				rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, capPtr(10))
				m.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "異常系: ルールが存在しない",
			key:  "unknown",
			setupMock: func(m *MockRewardRuleRepository) {
				m.On("FindByKey", mock.Anything, "unknown").Return(nil, rewardrule.ErrRuleNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			handler, mockRuleRepo, logger := newRuleHandler(t)
			tt.setupMock(mockRuleRepo)

			req := httptest.NewRequest(http.MethodGet, "/admin/reward-rules/"+tt.key, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("key")
			c.SetParamValues(tt.key)

			invokeHandler(t, logger, c, e, handler.GetRule)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectedStatus == http.StatusOK {
				var response RuleItem
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.Equal(t, tt.key, response.Key)
			}
		})
	}
}

func TestRuleHandler_CreateRule(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    map[string]interface{}
		setupMock      func(*MockRewardRuleRepository)
		expectedStatus int
	}{
		{
			name:        "正常系: ルール作成成功",
			requestBody: map[string]interface{}{"key": "daily_login", "label": "ログインボーナス", "coins": 5, "enabled": true},
			setupMock: func(m *MockRewardRuleRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:        "異常系: キーが既に存在する",
			requestBody: map[string]interface{}{"key": "daily_login", "label": "ログインボーナス", "coins": 5, "enabled": true},
			setupMock: func(m *MockRewardRuleRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(rewardrule.ErrRuleAlreadyExists)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "異常系: 無効なルールキー",
			requestBody:    map[string]interface{}{"key": "Invalid Key", "label": "ボーナス", "coins": 5, "enabled": true},
			setupMock:      func(m *MockRewardRuleRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "異常系: 付与コイン数が0",
			requestBody:    map[string]interface{}{"key": "daily_login", "label": "ボーナス", "coins": 0, "enabled": true},
			setupMock:      func(m *MockRewardRuleRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			handler, mockRuleRepo, logger := newRuleHandler(t)
			tt.setupMock(mockRuleRepo)

			body, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/admin/reward-rules", bytes.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			invokeHandler(t, logger, c, e, handler.CreateRule)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestRuleHandler_UpdateRule(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		requestBody    map[string]interface{}
		setupMock      func(*MockRewardRuleRepository)
		expectedStatus int
		check          func(*testing.T, RuleItem)
	}{
		{
			name:        "正常系: コイン数のみ更新",
			key:         "rating_reward",
			requestBody: map[string]interface{}{"coins": 3},
			setupMock: func(m *MockRewardRuleRepository) {
				rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, capPtr(10))
				m.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
				m.On("Update", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, item RuleItem) {
				assert.Equal(t, int64(3), item.Coins)
				// 未指定のフィールドは元の値を保持
				assert.Equal(t, "評価ボーナス", item.Label)
				require.NotNil(t, item.DailyCap)
				assert.Equal(t, int64(10), *item.DailyCap)
			},
		},
		{
			name:        "正常系: 日次上限を解除",
			key:         "rating_reward",
			requestBody: map[string]interface{}{"clear_daily_cap": true},
			setupMock: func(m *MockRewardRuleRepository) {
				rule := rewardrule.MustNewRewardRule("rating_reward", "評価ボーナス", 2, true, capPtr(10))
				m.On("FindByKey", mock.Anything, "rating_reward").Return(rule, nil)
				m.On("Update", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, item RuleItem) {
				assert.Nil(t, item.DailyCap)
			},
		},
		{
			name:        "異常系: ルールが存在しない",
			key:         "unknown",
			requestBody: map[string]interface{}{"coins": 3},
			setupMock: func(m *MockRewardRuleRepository) {
				m.On("FindByKey", mock.Anything, "unknown").Return(nil, rewardrule.ErrRuleNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			handler, mockRuleRepo, logger := newRuleHandler(t)
			tt.setupMock(mockRuleRepo)

			body, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPatch, "/admin/reward-rules/"+tt.key, bytes.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("key")
			c.SetParamValues(tt.key)

			invokeHandler(t, logger, c, e, handler.UpdateRule)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			if tt.check != nil {
				var response RuleItem
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				tt.check(t, response)
			}
		})
	}
}
