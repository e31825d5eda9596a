package diagnostics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"support-chat-backend/internal/chat"
	"support-chat-backend/internal/inference"
)

// ProbeMessage is sent to the inference backend on every run.
const ProbeMessage = "Hello, I need a trash can"

// Result is the outcome of one check.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Run sends ProbeMessage through sender and checks the reply. A failed call yields a
// single failed result; otherwise four results are returned in order: connection,
// intent classification, conversion, rich content.
func Run(ctx context.Context, sender inference.Sender, log zerolog.Logger) []Result {
	resp, err := sender.Send(ctx, ProbeMessage, nil)
	if err != nil {
		log.Warn().Err(err).Msg("inference diagnostics: connection failed")
		return []Result{{
			Success: false,
			Message: "Connection to chat inference failed",
			Error:   err.Error(),
		}}
	}

	results := []Result{{
		Success:  true,
		Message:  "Connection to chat inference successful",
		Response: resp,
	}}

	if intent := resp.Context.CustomerIntent; intent != "" {
		results = append(results, Result{Success: true, Message: fmt.Sprintf("Intent classification working: %q", intent)})
	} else {
		results = append(results, Result{Success: false, Message: "Intent classification test failed - no intent returned"})
	}

	results = append(results, Result{
		Success:  true,
		Message:  "Response conversion successful",
		Response: chat.Normalize(resp),
	})

	if resp.Message.RichContent != nil || resp.Message.Suggestions != nil {
		results = append(results, Result{Success: true, Message: "Rich content and/or suggestions detected in response"})
	} else {
		results = append(results, Result{Success: false, Message: "No rich content or suggestions detected"})
	}

	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}
	log.Info().Int("passed", passed).Int("total", len(results)).Msg("inference diagnostics finished")
	return results
}
