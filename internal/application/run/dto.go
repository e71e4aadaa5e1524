package run

// StartRunRequest ラン開始リクエスト
type StartRunRequest struct {
	UserID string
	Story  string
}

// StartRunResponse ラン開始レスポンス
type StartRunResponse struct {
	RunID       string
	Story       string
	CurrentStep int
	Completed   bool
}

// CurrentRequest 現在チャプター取得リクエスト
type CurrentRequest struct {
	UserID string
	RunID  string
}

// CurrentResponse 現在チャプター取得レスポンス
// 現在ステップのジャンルが未選択の場合はNodeがnilになり、Genresに選択肢が入る
type CurrentResponse struct {
	RunID       string
	Story       string
	CurrentStep int
	Completed   bool
	Node        *NodeDTO
	Genres      []string
}

// NodeDTO チャプターノード表現
type NodeDTO struct {
	NodeID string
	Story  string
	StepNo int
	Genre  string
	Title  string
	Body   string
}

// ChooseRequest ジャンル選択リクエスト
type ChooseRequest struct {
	UserID string
	RunID  string
	Genre  string
}

// ChooseResponse ジャンル選択レスポンス
// 選択したジャンルのノード本文を返し、ランは次のステップへ進む
type ChooseResponse struct {
	RunID       string
	Node        *NodeDTO
	CurrentStep int
	Completed   bool
}

// RateRequest ノード評価リクエスト
type RateRequest struct {
	UserID string
	RunID  string
	NodeID string
	Rating int
}

// RateResponse ノード評価レスポンス
type RateResponse struct {
	OK           bool
	CoinsAwarded int64
}

// UnlockRequest チャプター解錠リクエスト
type UnlockRequest struct {
	UserID        string
	RunID         string
	ChapterNumber int
}

// UnlockResponse チャプター解錠レスポンス
type UnlockResponse struct {
	Unlocked      bool
	TransactionID string
	BalanceAfter  int64
}
