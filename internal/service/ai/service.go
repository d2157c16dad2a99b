package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/lumenhealth/checkin/backend/internal/analysis/emotion"
	"github.com/lumenhealth/checkin/backend/internal/config"
	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

// Generation failures are never retried; callers fall back to Fallback.
var (
	ErrTimeout         = errors.New("ai: generation timed out")
	ErrUnavailable     = errors.New("ai: model backend unavailable")
	ErrInvalidResponse = errors.New("ai: empty model response")
)

// Request carries everything the model needs for one conversational reply.
type Request struct {
	Patient     *patient.Patient
	Emotion     emotion.Result
	History     []session.Turn
	UserMessage string
}

// Generator produces a single empathetic reply for a check-in turn.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Service generates replies through an eino chat chain.
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

// NewService compiles the chat chain against the configured model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{chain: runnable, timeout: timeout}, nil
}

// Generate runs one chain invocation under the configured timeout.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.chain.Invoke(ctx, buildChainInput(req))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", ErrInvalidResponse
	}
	return text, nil
}

func buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  buildSystemPrompt(req),
		"history": buildHistoryMessages(req.History),
		"query":   req.UserMessage,
	}
}

func buildHistoryMessages(turns []session.Turn) []*schema.Message {
	const historyLimit = 10

	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Speaker {
		case session.SpeakerPatient:
			history = append(history, schema.UserMessage(turn.Text))
		case session.SpeakerAgent:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}

	return history
}
