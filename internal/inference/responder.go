package inference

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"support-chat-backend/internal/config"
)

//go:embed prompts/responder.yaml
var defaultPromptSpec []byte

type PromptSpec struct {
	System string `yaml:"system"`
	Style  struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// Responder answers with an OpenAI chat completion shaped like the remote reply, so the
// rest of the chat flow does not care which backend produced it.
type Responder struct {
	spec   PromptSpec
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// LoadResponder reads the prompt spec at path, or the embedded default when path is empty.
func LoadResponder(path string, client *openai.Client, model string, log zerolog.Logger) (*Responder, error) {
	b := defaultPromptSpec
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read prompt spec: %w", err)
		}
	}
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("parse prompt spec: %w", err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return nil, fmt.Errorf("prompt spec has no system text")
	}
	return &Responder{
		spec:   spec,
		client: client,
		model:  model,
		log:    log.With().Str("component", "responder").Logger(),
	}, nil
}

func (r *Responder) Send(ctx context.Context, message string, cc *ConversationContext) (*Response, error) {
	start := time.Now()
	resp, err := r.send(ctx, message, cc)
	observe(config.BackendOpenAI, start, err)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", string(KindOf(err))).Msg("local responder failed")
		return nil, err
	}
	return resp, nil
}

func (r *Responder) send(ctx context.Context, message string, cc *ConversationContext) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &RequestError{Kind: KindInput, Msg: "message is required"}
	}
	temp := r.spec.Style.Temperature
	if temp <= 0 {
		temp = 0.3
	}
	maxTok := r.spec.Style.MaxTokens
	if maxTok <= 0 {
		maxTok = 600
	}
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: temp,
		MaxTokens:   maxTok,
		Messages:    r.buildMessages(message, cc),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, httpError(apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, networkError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, parseError("no choices", nil)
	}
	return decodeResponse(extractJSONObject(resp.Choices[0].Message.Content))
}

func (r *Responder) buildMessages(message string, cc *ConversationContext) []openai.ChatCompletionMessage {
	var b strings.Builder
	b.WriteString(r.spec.System)
	if cc != nil {
		prefs := buildPayload(message, &Session{}, cc).Preferences
		if prefs != nil {
			js, _ := json.Marshal(prefs)
			b.WriteString("\n\nKnown customer context:\n")
			b.Write(js)
		}
	}
	out := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: b.String()}}
	if cc != nil {
		for _, t := range cc.History {
			role := openai.ChatMessageRoleUser
			if t.Role == "bot" || t.Role == openai.ChatMessageRoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Content})
		}
	}
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
}

// extractJSONObject trims any prose or code fences the model put around the object.
func extractJSONObject(raw string) []byte {
	raw = strings.TrimSpace(raw)
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first >= 0 && last > first {
		return []byte(raw[first : last+1])
	}
	return []byte(raw)
}
