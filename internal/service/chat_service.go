package service

import (
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxChatMessageLength = 4000
	defaultChatTitle     = "New chat"
)

// ChatCompleter 上游 AI 对话接口
type ChatCompleter interface {
	Chat(ctx context.Context, systemPrompt string, history []AIChatMessage, prompt string) (string, error)
}

type ChatService struct {
	ChatRepo     *repository.ChatRepository
	ProgramRepo  *repository.ProgramRepository
	AI           ChatCompleter
	HistoryLimit int
}

func NewChatService(chatRepo *repository.ChatRepository, programRepo *repository.ProgramRepository, ai ChatCompleter, cfg config.AIConfig) *ChatService {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	return &ChatService{
		ChatRepo:     chatRepo,
		ProgramRepo:  programRepo,
		AI:           ai,
		HistoryLimit: limit,
	}
}

type CreateSessionRequest struct {
	Title     string `json:"title"`
	ProgramID *uint  `json:"programId"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type SendMessageResponse struct {
	UserMessage      model.ChatMessage `json:"userMessage"`
	AssistantMessage model.ChatMessage `json:"assistantMessage"`
}

func (s *ChatService) CreateSession(userID uint, req CreateSessionRequest) (*model.ChatSession, error) {
	if req.ProgramID != nil {
		if _, err := s.ProgramRepo.FindByID(*req.ProgramID); err != nil {
			return nil, notFoundOr(err, util.ErrProgramNotFound)
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatTitle
	}

	session := &model.ChatSession{UserID: userID, ProgramID: req.ProgramID, Title: title}
	if err := s.ChatRepo.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	return s.ChatRepo.ListSessions(userID)
}

// GetSession 返回会话及完整记录
func (s *ChatService) GetSession(userID uint, sessionID string) (*model.ChatSession, error) {
	session, err := s.ChatRepo.FindSession(sessionID, userID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrChatSessionNotFound)
	}
	msgs, err := s.ChatRepo.ListMessages(sessionID)
	if err != nil {
		return nil, err
	}
	session.Messages = msgs
	return session, nil
}

func (s *ChatService) DeleteSession(userID uint, sessionID string) error {
	if _, err := s.ChatRepo.FindSession(sessionID, userID); err != nil {
		return notFoundOr(err, util.ErrChatSessionNotFound)
	}
	return s.ChatRepo.DeleteSession(sessionID)
}

func (s *ChatService) systemPrompt(session *model.ChatSession) string {
	if session.ProgramID == nil {
		return ""
	}
	program, err := s.ProgramRepo.FindByID(*session.ProgramID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s The student is enrolled in the course %q. %s", defaultTutorPrompt, program.Name, program.Description)
}

// SendMessage 转发给 AI 并保存双方消息，上游失败时记录 system 消息
func (s *ChatService) SendMessage(ctx context.Context, userID uint, sessionID string, req SendMessageRequest) (*SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, util.NewValidation("content is required")
	}
	if utf8.RuneCountInString(content) > maxChatMessageLength {
		return nil, util.NewValidation("content exceeds %d characters", maxChatMessageLength)
	}

	session, err := s.ChatRepo.FindSession(sessionID, userID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrChatSessionNotFound)
	}

	recent, err := s.ChatRepo.RecentMessages(sessionID, s.HistoryLimit)
	if err != nil {
		return nil, err
	}
	history := make([]AIChatMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, AIChatMessage{Role: m.Role, Content: m.Content})
	}

	userMsg := model.ChatMessage{SessionID: sessionID, Role: model.ChatRoleUser, Content: content}
	if err := s.ChatRepo.AddMessage(&userMsg); err != nil {
		return nil, err
	}

	reply, err := s.AI.Chat(ctx, s.systemPrompt(session), history, content)
	if err != nil {
		sysMsg := model.ChatMessage{
			SessionID: sessionID,
			Role:      model.ChatRoleSystem,
			Content:   "The AI tutor is currently unavailable. Please try again later.",
		}
		if saveErr := s.ChatRepo.AddMessage(&sysMsg); saveErr != nil {
			logger.Log.Error("Failed to record AI failure", zap.String("sessionId", sessionID), zap.Error(saveErr))
		}
		return nil, util.NewServiceUnavailable("AI service unavailable", err)
	}

	assistantMsg := model.ChatMessage{SessionID: sessionID, Role: model.ChatRoleAssistant, Content: reply}
	if err := s.ChatRepo.AddMessage(&assistantMsg); err != nil {
		return nil, err
	}

	return &SendMessageResponse{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}
