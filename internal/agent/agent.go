// Package agent asks the chat model for an epistemic audit of a message.
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/comtesta/internal/cache"
	"github.com/hyperifyio/comtesta/internal/llm"
)

const (
	// DefaultModel is used when Auditor.Model is empty.
	DefaultModel = "llama-3.1-8b-instant"
	// HistoryTurns is how many prior turns are sent with each request.
	HistoryTurns = 10
	// Temperature of audit requests.
	Temperature = 0.7
)

var (
	// ErrEmptyResponse means the model returned no usable text.
	ErrEmptyResponse = errors.New("agent: model returned no text")
	// ErrEmptyMessage means there was nothing to audit.
	ErrEmptyMessage = errors.New("agent: message is required")
)

// Turn is one prior chat message. Any role other than "assistant" is sent as
// "user".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one audit request.
type Request struct {
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
	// SystemPrompt overrides the auditor's prompt when non-blank.
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// Auditor calls the model. Zero values select DefaultModel and
// DefaultSystemPrompt; Cache and Limiter are optional.
type Auditor struct {
	Client       llm.Client
	Model        string
	SystemPrompt string
	Cache        *cache.LLMCache
	Limiter      *rate.Limiter
	// RetryDelay is the pause before the single retry; defaults to 500ms.
	RetryDelay time.Duration
}

// Audit sends the system prompt, the last HistoryTurns turns and the message,
// and returns the model's text.
func (a *Auditor) Audit(ctx context.Context, req Request) (string, error) {
	if a.Client == nil {
		return "", errors.New("agent: client not configured")
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	model := a.model()
	messages := BuildMessages(a.systemPrompt(req.SystemPrompt), req.History, msg)

	key := cache.KeyFrom(model, promptDigestInput(messages))
	if a.Cache != nil {
		if e, ok, _ := a.Cache.Get(ctx, key); ok {
			log.Debug().Str("model", model).Msg("audit served from cache")
			return e.Text, nil
		}
	}

	chat := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: Temperature,
		N:           1,
	}
	start := time.Now()
	resp, err := a.call(ctx, chat)
	if err != nil {
		// One retry after a short backoff; ctx still bounds the wait.
		log.Warn().Err(err).Str("model", model).Msg("audit call failed; retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.retryDelay()):
		}
		resp, err = a.call(ctx, chat)
		if err != nil {
			return "", fmt.Errorf("audit call (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := FinalContent(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	log.Info().
		Str("model", model).
		Int("history", len(messages)-2).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("audit completed")

	if a.Cache != nil {
		if err := a.Cache.Save(ctx, key, cache.Entry{Model: model, Text: text}); err != nil {
			log.Warn().Err(err).Msg("cache audit")
		}
	}
	return text, nil
}

func (a *Auditor) call(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, err
		}
	}
	return a.Client.CreateChatCompletion(ctx, req)
}

func (a *Auditor) model() string {
	if m := strings.TrimSpace(a.Model); m != "" {
		return m
	}
	return DefaultModel
}

func (a *Auditor) systemPrompt(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if s := strings.TrimSpace(a.SystemPrompt); s != "" {
		return s
	}
	return DefaultSystemPrompt
}

func (a *Auditor) retryDelay() time.Duration {
	if a.RetryDelay > 0 {
		return a.RetryDelay
	}
	return 500 * time.Millisecond
}

// BuildMessages returns system, the last HistoryTurns non-empty turns, then
// the user message.
func BuildMessages(system string, history []Turn, message string) []openai.ChatCompletionMessage {
	var turns []openai.ChatCompletionMessage
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if strings.EqualFold(strings.TrimSpace(t.Role), openai.ChatMessageRoleAssistant) {
			role = openai.ChatMessageRoleAssistant
		}
		turns = append(turns, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	if len(turns) > HistoryTurns {
		turns = turns[len(turns)-HistoryTurns:]
	}
	out := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	out = append(out, turns...)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	return out
}

func promptDigestInput(messages []openai.ChatCompletionMessage) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Role)
		sb.WriteString("\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

var reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// FinalContent drops <think>…</think> reasoning blocks some models emit and
// trims the rest.
func FinalContent(content string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(content, ""))
}
