package rewardrule

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/rewardrule"
	otelinfra "storyverse-server/internal/infrastructure/observability/otel"
)

// RewardRuleApplicationService リワードルール管理アプリケーションサービス
type RewardRuleApplicationService struct {
	ruleRepo rewardrule.RewardRuleRepository
	logger   *otelinfra.Logger
	tracer   trace.Tracer
}

// NewRewardRuleApplicationService 新しいRewardRuleApplicationServiceを作成
func NewRewardRuleApplicationService(
	ruleRepo rewardrule.RewardRuleRepository,
	logger *otelinfra.Logger,
) *RewardRuleApplicationService {
	return &RewardRuleApplicationService{
		ruleRepo: ruleRepo,
		logger:   logger,
		tracer:   otel.Tracer("reward-rule-service"),
	}
}

// List 全ルールを取得
func (s *RewardRuleApplicationService) List(ctx context.Context) (*ListRulesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RewardRuleApplicationService.List")
	defer span.End()

	rules, err := s.ruleRepo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	dtos := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, toRuleDTO(rule))
	}

	return &ListRulesResponse{Rules: dtos}, nil
}

// Get ルールキーでルールを取得
func (s *RewardRuleApplicationService) Get(ctx context.Context, req *GetRuleRequest) (*RuleDTO, error) {
	ctx, span := s.tracer.Start(ctx, "RewardRuleApplicationService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("rule_key", req.Key))

	rule, err := s.ruleRepo.FindByKey(ctx, req.Key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	dto := toRuleDTO(rule)
	return &dto, nil
}

// Create 新しいルールを作成
func (s *RewardRuleApplicationService) Create(ctx context.Context, req *CreateRuleRequest) (*RuleDTO, error) {
	ctx, span := s.tracer.Start(ctx, "RewardRuleApplicationService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("rule_key", req.Key),
		attribute.Int64("coins", req.Coins),
	)

	rule, err := rewardrule.NewRewardRule(req.Key, req.Label, req.Coins, req.Enabled, req.DailyCap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to create reward rule", err, map[string]interface{}{
			"rule_key": req.Key,
		})
		return nil, err
	}

	s.logger.Info(ctx, "Reward rule created", map[string]interface{}{
		"rule_key": req.Key,
		"coins":    req.Coins,
		"enabled":  req.Enabled,
	})

	dto := toRuleDTO(rule)
	return &dto, nil
}

// Update 既存ルールを部分更新
func (s *RewardRuleApplicationService) Update(ctx context.Context, req *UpdateRuleRequest) (*RuleDTO, error) {
	ctx, span := s.tracer.Start(ctx, "RewardRuleApplicationService.Update")
	defer span.End()

	span.SetAttributes(attribute.String("rule_key", req.Key))

	rule, err := s.ruleRepo.FindByKey(ctx, req.Key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	label := rule.Label()
	if req.Label != nil {
		label = *req.Label
	}
	coins := rule.Coins()
	if req.Coins != nil {
		coins = *req.Coins
	}
	enabled := rule.Enabled()
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	dailyCap := rule.DailyCap()
	if req.ClearDailyCap {
		dailyCap = nil
	} else if req.DailyCap != nil {
		dailyCap = req.DailyCap
	}

	if err := rule.Update(label, coins, enabled, dailyCap); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to update reward rule", err, map[string]interface{}{
			"rule_key": req.Key,
		})
		return nil, err
	}

	s.logger.Info(ctx, "Reward rule updated", map[string]interface{}{
		"rule_key": req.Key,
		"coins":    coins,
		"enabled":  enabled,
	})

	dto := toRuleDTO(rule)
	return &dto, nil
}

// toRuleDTO ルールエンティティをDTOへ変換
func toRuleDTO(rule *rewardrule.RewardRule) RuleDTO {
	return RuleDTO{
		Key:       rule.Key(),
		Label:     rule.Label(),
		Coins:     rule.Coins(),
		Enabled:   rule.Enabled(),
		DailyCap:  rule.DailyCap(),
		CreatedAt: rule.CreatedAt(),
		UpdatedAt: rule.UpdatedAt(),
	}
}
