package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"legalquery/internal/models"
	"legalquery/internal/security"
	"legalquery/internal/service/ai"
	"legalquery/internal/service/assistant"
)

// Result is the outcome of one Ask turn. Blocked reports whether the query
// was refused before reaching the model. Advisories are compliance notes on
// the answer; they are returned to the caller but never stored.
type Result struct {
	UserMessage      *models.Message         `json:"user_message"`
	AssistantMessage *models.Message         `json:"assistant_message"`
	Blocked          bool                    `json:"blocked"`
	Warning          *models.SecurityWarning `json:"warning,omitempty"`
	Chunks           []models.RetrievalChunk `json:"chunks,omitempty"`
	Citations        []models.Citation       `json:"citations,omitempty"`
	Advisories       []string                `json:"advisories,omitempty"`
}

// Service runs the conversation pipeline: persist the user turn, screen it,
// then either refuse or generate a grounded answer. Requests for one session
// are expected to arrive one at a time; there is no queueing here.
type Service struct {
	store      *assistant.Service
	generator  ai.Generator
	filter     *security.Filter
	compliance *security.Checker
	logger     *zap.Logger
}

func NewService(store *assistant.Service, generator ai.Generator, filter *security.Filter, compliance *security.Checker, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		generator:  generator,
		filter:     filter,
		compliance: compliance,
		logger:     logger,
	}
}

// Ask processes one user query inside an active session.
//
// The user turn is always persisted first. A query the filter rejects never
// reaches the provider: the refusal text is stored as the assistant turn and
// a security warning is recorded against the user message. A provider error
// is also stored as the assistant turn so the conversation log stays
// complete.
func (s *Service) Ask(ctx context.Context, sessionID int64, query string) (*Result, error) {
	session, err := s.store.GetActiveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSessionSettings(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session settings: %w", err)
	}

	userMsg, err := s.store.AddMessage(ctx, sessionID, models.RoleUser, query)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	result := &Result{UserMessage: userMsg}

	if settings.SecurityEnabled {
		check := s.filter.Check(query)
		if !check.Safe {
			return s.refuse(ctx, sessionID, userMsg, query, check, result)
		}
	}

	req := ai.GenerateRequest{
		Model:        settings.ModelName,
		Query:        query,
		StoreName:    session.KnowledgeBase,
		SystemPrompt: settings.SystemPrompt,
	}
	if settings.UseMetadataFilter {
		req.MetadataFilter = settings.MetadataFilter
	}

	answer, genErr := s.generator.Generate(ctx, req)
	if genErr != nil {
		// the error text becomes the assistant turn so the session log
		// reflects what the user saw
		s.logger.Error("generation failed",
			zap.Int64("session_id", sessionID), zap.Error(genErr))
		answer = &ai.Answer{Text: fmt.Sprintf("生成回應時發生錯誤: %v", genErr)}
	}

	assistantMsg, err := s.store.SaveAssistantAnswer(ctx, sessionID, answer)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	result.AssistantMessage = assistantMsg

	if assistantMsg.HasChunks {
		if result.Chunks, err = s.store.ListChunks(ctx, assistantMsg.ID); err != nil {
			return nil, fmt.Errorf("load chunks: %w", err)
		}
		if result.Citations, err = s.store.ListCitations(ctx, assistantMsg.ID); err != nil {
			return nil, fmt.Errorf("load citations: %w", err)
		}
	}

	if genErr == nil && settings.SecurityEnabled {
		review := s.compliance.Review(answer.Text, assistantMsg.HasChunks)
		if !review.Compliant {
			result.Advisories = review.Issues
			s.logger.Warn("compliance advisory",
				zap.Int64("session_id", sessionID),
				zap.Int64("message_id", assistantMsg.ID),
				zap.Strings("issues", review.Issues))
		}
	}
	return result, nil
}

func (s *Service) refuse(ctx context.Context, sessionID int64, userMsg *models.Message, query string, check security.FilterResult, result *Result) (*Result, error) {
	warningType := "prompt_injection"
	if len(check.Categories) > 0 {
		warningType = check.Categories[0]
	}
	warning, err := s.store.AddWarning(ctx, sessionID, &userMsg.ID, warningType, check.Warning, query)
	if err != nil {
		return nil, fmt.Errorf("persist warning: %w", err)
	}

	refusal := &ai.Answer{Text: s.filter.RefusalMessage()}
	assistantMsg, err := s.store.SaveAssistantAnswer(ctx, sessionID, refusal)
	if err != nil {
		return nil, fmt.Errorf("persist refusal: %w", err)
	}

	s.logger.Warn("query blocked",
		zap.Int64("session_id", sessionID),
		zap.Strings("categories", check.Categories))

	result.Blocked = true
	result.Warning = warning
	result.AssistantMessage = assistantMsg
	return result, nil
}
