package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyverse-server/internal/domain/rewardrule"
)

// RewardRuleRepository MySQL実装のRewardRuleRepository
type RewardRuleRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewRewardRuleRepository 新しいRewardRuleRepositoryを作成
func NewRewardRuleRepository(db *DB) *RewardRuleRepository {
	return &RewardRuleRepository{
		db:     db,
		tracer: otel.Tracer("reward-rule-repository"),
	}
}

// scanRewardRule 1行分のルールをエンティティとして復元
func scanRewardRule(scan func(dest ...interface{}) error) (*rewardrule.RewardRule, error) {
	var key, label string
	var coins int64
	var enabled bool
	var dailyCap sql.NullInt64
	var createdAt, updatedAt time.Time

	if err := scan(&key, &label, &coins, &enabled, &dailyCap, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var capValue *int64
	if dailyCap.Valid {
		v := dailyCap.Int64
		capValue = &v
	}

	rule, err := rewardrule.ReconstructRewardRule(key, label, coins, enabled, capValue, createdAt, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct reward rule entity: %w", err)
	}
	return rule, nil
}

// FindByKey ルールキーでルールを取得
func (r *RewardRuleRepository) FindByKey(ctx context.Context, key string) (*rewardrule.RewardRule, error) {
	ctx, span := r.tracer.Start(ctx, "RewardRuleRepository.FindByKey")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.rule_key", key),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "reward_rules"),
	)

	query := `
		SELECT rule_key, label, coins, enabled, daily_cap, created_at, updated_at
		FROM reward_rules
		WHERE rule_key = ?
	`

	row := r.db.executor(ctx).QueryRowContext(ctx, query, key)
	rule, err := scanRewardRule(row.Scan)
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "rule not found")
		return nil, rewardrule.ErrRuleNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find reward rule: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "rule found")
	return rule, nil
}

// FindAll 全ルールを取得
func (r *RewardRuleRepository) FindAll(ctx context.Context) ([]*rewardrule.RewardRule, error) {
	ctx, span := r.tracer.Start(ctx, "RewardRuleRepository.FindAll")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "reward_rules"),
	)

	query := `
		SELECT rule_key, label, coins, enabled, daily_cap, created_at, updated_at
		FROM reward_rules
		ORDER BY rule_key
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to query reward rules: %w", err)
	}
	defer rows.Close()

	var rules []*rewardrule.RewardRule
	for rows.Next() {
		rule, err := scanRewardRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate reward rules: %w", err)
	}

	span.SetAttributes(attribute.Int("db.result_count", len(rules)))
	span.SetStatus(otelcodes.Ok, fmt.Sprintf("found %d rules", len(rules)))
	return rules, nil
}

// Create 新しいルールを作成
func (r *RewardRuleRepository) Create(ctx context.Context, rule *rewardrule.RewardRule) error {
	ctx, span := r.tracer.Start(ctx, "RewardRuleRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.rule_key", rule.Key()),
		attribute.Int64("db.coins", rule.Coins()),
		attribute.Bool("db.enabled", rule.Enabled()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "reward_rules"),
	)

	query := `
		INSERT INTO reward_rules (rule_key, label, coins, enabled, daily_cap, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var dailyCap interface{}
	if c := rule.DailyCap(); c != nil {
		dailyCap = *c
	}

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		rule.Key(),
		rule.Label(),
		rule.Coins(),
		rule.Enabled(),
		dailyCap,
		rule.CreatedAt(),
		rule.UpdatedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		// 1062 = ER_DUP_ENTRY
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			span.SetStatus(otelcodes.Ok, "rule already exists")
			return rewardrule.ErrRuleAlreadyExists
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create reward rule: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "rule created")
	return nil
}

// Update ルールを更新
func (r *RewardRuleRepository) Update(ctx context.Context, rule *rewardrule.RewardRule) error {
	ctx, span := r.tracer.Start(ctx, "RewardRuleRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.rule_key", rule.Key()),
		attribute.Int64("db.coins", rule.Coins()),
		attribute.Bool("db.enabled", rule.Enabled()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "reward_rules"),
	)

	query := `
		UPDATE reward_rules
		SET label = ?, coins = ?, enabled = ?, daily_cap = ?, updated_at = ?
		WHERE rule_key = ?
	`

	var dailyCap interface{}
	if c := rule.DailyCap(); c != nil {
		dailyCap = *c
	}

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		rule.Label(),
		rule.Coins(),
		rule.Enabled(),
		dailyCap,
		rule.UpdatedAt(),
		rule.Key(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to update reward rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		span.SetStatus(otelcodes.Ok, "rule not found")
		return rewardrule.ErrRuleNotFound
	}

	span.SetStatus(otelcodes.Ok, "rule updated")
	return nil
}
