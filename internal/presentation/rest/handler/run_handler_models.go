package handler

// StartRunRequest ラン開始リクエスト
// @Description ラン開始リクエスト
type StartRunRequest struct {
	Story string `json:"story" example:"midnight-library"`
}

// RunResponse ランレスポンス
// @Description ランレスポンス
type RunResponse struct {
	RunID       string `json:"run_id" example:"7f9c24e5-1b34-4a0e-9c2f-3a8d5b6c7d8e"`
	Story       string `json:"story" example:"midnight-library"`
	CurrentStep int    `json:"current_step" example:"1"`
	Completed   bool   `json:"completed" example:"false"`
}

// NodeItem チャプターノードアイテム
// @Description チャプターノードアイテム
type NodeItem struct {
	NodeID string `json:"node_id" example:"midnight-library_3_mystery"`
	Story  string `json:"story" example:"midnight-library"`
	StepNo int    `json:"step_no" example:"3"`
	Genre  string `json:"genre" example:"mystery"`
	Title  string `json:"title" example:"閉ざされた書庫"`
	Body   string `json:"body" example:"..."`
}

// CurrentResponse 現在チャプターレスポンス
// @Description 現在チャプターレスポンス。ジャンル未選択時はnodeの代わりにgenresが入る
type CurrentResponse struct {
	RunID       string    `json:"run_id" example:"7f9c24e5-1b34-4a0e-9c2f-3a8d5b6c7d8e"`
	Story       string    `json:"story" example:"midnight-library"`
	CurrentStep int       `json:"current_step" example:"3"`
	Completed   bool      `json:"completed" example:"false"`
	Node        *NodeItem `json:"node,omitempty"`
	Genres      []string  `json:"genres,omitempty" example:"fantasy,mystery,romance"`
}

// ChooseRequest ジャンル選択リクエスト
// @Description ジャンル選択リクエスト
type ChooseRequest struct {
	Genre string `json:"genre" example:"mystery"`
}

// ChooseResponse ジャンル選択レスポンス
// @Description ジャンル選択レスポンス
type ChooseResponse struct {
	RunID       string    `json:"run_id" example:"7f9c24e5-1b34-4a0e-9c2f-3a8d5b6c7d8e"`
	Node        *NodeItem `json:"node"`
	CurrentStep int       `json:"current_step" example:"4"`
	Completed   bool      `json:"completed" example:"false"`
}

// RateRequest ノード評価リクエスト
// @Description ノード評価リクエスト
type RateRequest struct {
	NodeID string `json:"node_id" example:"midnight-library_3_mystery"`
	Rating int    `json:"rating" example:"5"`
}

// RateResponse ノード評価レスポンス
// @Description ノード評価レスポンス
type RateResponse struct {
	OK           bool  `json:"ok" example:"true"`
	CoinsAwarded int64 `json:"coins_awarded" example:"2"`
}

// UnlockRequest チャプター解錠リクエスト
// @Description チャプター解錠リクエスト
type UnlockRequest struct {
	ChapterNumber int `json:"chapter_number" example:"3"`
}

// UnlockResponse チャプター解錠レスポンス
// @Description チャプター解錠レスポンス
type UnlockResponse struct {
	Unlocked      bool   `json:"unlocked" example:"true"`
	TransactionID string `json:"transaction_id" example:"txn_1756700000000000003"`
	BalanceAfter  int64  `json:"balance_after" example:"50"`
}

// InsufficientCoinsResponse コイン不足レスポンス
// @Description コイン不足レスポンス
type InsufficientCoinsResponse struct {
	Error     string `json:"error" example:"INSUFFICIENT_COINS"`
	Message   string `json:"message" example:"insufficient coins: available=50 required=100"`
	Available int64  `json:"available" example:"50"`
	Required  int64  `json:"required" example:"100"`
}
