package story

import (
	"errors"
)

var (
	// ErrNodeNotFound ノードが見つからないエラー
	ErrNodeNotFound = errors.New("story node not found")
)

// Node 固定ジャーニー内のチャプターノードエンティティ
// (story, stepNo, genre) の組で一意に定まる
type Node struct {
	nodeID string
	story  string
	stepNo int
	genre  string
	title  string
	body   string
}

// NewNode 新しいNodeエンティティを作成
func NewNode(nodeID, story string, stepNo int, genre, title, body string) *Node {
	return &Node{
		nodeID: nodeID,
		story:  story,
		stepNo: stepNo,
		genre:  genre,
		title:  title,
		body:   body,
	}
}

// NodeID ノードIDを返す
func (n *Node) NodeID() string {
	return n.nodeID
}

// Story ストーリー識別子を返す
func (n *Node) Story() string {
	return n.story
}

// StepNo ステップ番号を返す
func (n *Node) StepNo() int {
	return n.stepNo
}

// Genre ジャンルを返す
func (n *Node) Genre() string {
	return n.genre
}

// Title タイトルを返す
func (n *Node) Title() string {
	return n.title
}

// Body 本文を返す
func (n *Node) Body() string {
	return n.body
}
