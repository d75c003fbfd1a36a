package model

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ChatSession AI 辅导会话
type ChatSession struct {
	UUIDBase
	UserID    uint          `gorm:"index;not null" json:"userId"`
	ProgramID *uint         `gorm:"index" json:"programId,omitempty"`
	Title     string        `gorm:"size:255" json:"title"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 会话中的单条消息，system 消息用于记录上游失败
type ChatMessage struct {
	BaseModel
	SessionID string `gorm:"index;type:varchar(36);not null" json:"sessionId"`
	Role      string `gorm:"size:20;not null" json:"role"`
	Content   string `gorm:"type:text" json:"content"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
