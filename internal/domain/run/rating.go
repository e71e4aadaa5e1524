package run

import (
	"time"
)

const (
	// MinRating 評価の最小値
	MinRating = 1
	// MaxRating 評価の最大値
	MaxRating = 5
)

// NodeRating チャプターノードへの評価レコード
type NodeRating struct {
	runID     string
	nodeID    string
	rating    int
	createdAt time.Time
}

// NewNodeRating 新しいNodeRatingを作成
func NewNodeRating(runID, nodeID string, rating int) (*NodeRating, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	return &NodeRating{
		runID:     runID,
		nodeID:    nodeID,
		rating:    rating,
		createdAt: time.Now(),
	}, nil
}

// RunID ランIDを返す
func (n *NodeRating) RunID() string {
	return n.runID
}

// NodeID ノードIDを返す
func (n *NodeRating) NodeID() string {
	return n.nodeID
}

// Rating 評価値を返す
func (n *NodeRating) Rating() int {
	return n.rating
}

// CreatedAt 作成日時を返す
func (n *NodeRating) CreatedAt() time.Time {
	return n.createdAt
}
