package inference

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"support-chat-backend/internal/config"
)

// Sender produces one inference reply per user message.
type Sender interface {
	Send(ctx context.Context, message string, cc *ConversationContext) (*Response, error)
}

// SessionProvider resolves the authenticated session for ctx. It returns (nil, nil) when
// there is none.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

type ClientOptions struct {
	Endpoint string
	// AnonKey is sent as the apikey header when set.
	AnonKey string
	Timeout time.Duration
}

// Client calls the hosted chat-inference endpoint on behalf of the current session.
type Client struct {
	http     *resty.Client
	endpoint string
	sessions SessionProvider
	log      zerolog.Logger
}

// NewClient creates a Resty-backed inference client.
func NewClient(opts ClientOptions, sessions SessionProvider, log zerolog.Logger) *Client {
	hc := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.AnonKey != "" {
		hc.SetHeader("apikey", opts.AnonKey)
	}
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}
	return &Client{
		http:     hc,
		endpoint: opts.Endpoint,
		sessions: sessions,
		log:      log.With().Str("component", "inference").Logger(),
	}
}

// Send issues exactly one POST for message. Every failure is a *RequestError.
func (c *Client) Send(ctx context.Context, message string, cc *ConversationContext) (*Response, error) {
	start := time.Now()
	resp, err := c.send(ctx, message, cc)
	observe(config.BackendRemote, start, err)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", string(KindOf(err))).Msg("chat inference failed")
		return nil, err
	}
	c.log.Debug().
		Str("intent", resp.Context.CustomerIntent).
		Int("rich_content", len(resp.Message.RichContent)).
		Dur("took", time.Since(start)).
		Msg("chat inference ok")
	return resp, nil
}

func (c *Client) send(ctx context.Context, message string, cc *ConversationContext) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &RequestError{Kind: KindInput, Msg: "message is required"}
	}
	sess, err := c.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, sessionError(err)
	}
	if sess == nil || strings.TrimSpace(sess.AccessToken) == "" {
		return nil, sessionError(nil)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(sess.AccessToken).
		SetBody(buildPayload(message, sess, cc)).
		Post(c.endpoint)
	if err != nil {
		return nil, networkError(err)
	}
	if !res.IsSuccess() {
		return nil, httpError(res.StatusCode(), serverMessage(res.Body()))
	}
	return decodeResponse(res.Body())
}

func decodeResponse(body []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, parseError("invalid response body", err)
	}
	out, ok := wire.toResponse()
	if !ok {
		return nil, parseError("response is missing message.text", nil)
	}
	return out, nil
}

// serverMessage pulls a human readable message out of an error body, if any.
func serverMessage(body []byte) string {
	var e struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch v := e.Error.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case map[string]any:
		if s, ok := v["message"].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(e.Message)
}
