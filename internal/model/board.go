package model

// SubReply は返信への返信。
type SubReply struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Time     string `json:"time"`
	Content  string `json:"content"`
	ReplyTo  *int64 `json:"replyTo,omitempty"`
}

// Reply は留言への返信。
type Reply struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	Time     string     `json:"time"`
	Content  string     `json:"content"`
	Replies  []SubReply `json:"replies,omitempty"`
	ReplyTo  *int64     `json:"replyTo,omitempty"`
}

// Message は掲示板の留言（トップレベルの投稿）。
type Message struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Avatar   string  `json:"avatar"`
	Time     string  `json:"time"`
	Content  string  `json:"content"`
	Replies  []Reply `json:"replies,omitempty"`
}

// MessageInput は POST /msgboard/messages/ のリクエストボディ。
type MessageInput struct {
	Content string `json:"content"`
}

// ReplyInput は POST /msgboard/messages/{id}/create_reply/ のリクエストボディ。
// ParentReply が nil の場合は留言への直接の返信になる。
type ReplyInput struct {
	Content     string `json:"content"`
	ParentReply *int64 `json:"parent_reply"`
}
