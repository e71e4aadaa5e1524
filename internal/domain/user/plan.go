package user

import (
	"fmt"
)

// Plan ユーザープランを表す値オブジェクト
type Plan string

const (
	PlanFree    Plan = "free"    // 無料プラン
	PlanPremium Plan = "premium" // プレミアムプラン
	PlanCreator Plan = "creator" // クリエイタープラン
)

// NewPlan 新しいPlanを作成
func NewPlan(s string) (Plan, error) {
	switch s {
	case "free", "premium", "creator":
		return Plan(s), nil
	default:
		return "", fmt.Errorf("invalid plan: %s", s)
	}
}

// String 文字列表現を返す
func (p Plan) String() string {
	return string(p)
}

// BypassesGate 有料チャプターのゲートをバイパスできるプランかどうかを返す
func (p Plan) BypassesGate() bool {
	return p == PlanPremium || p == PlanCreator
}
