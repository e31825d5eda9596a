package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-chat-backend/internal/inference"
)

const (
	cardType         = "card"
	unknownCategory  = "unknown"
	fallbackImageURL = "https://images.unsplash.com/photo-1563453392212-326f5e854473?ixlib=rb-1.2.1&auto=format&fit=crop&w=1350&q=80"
)

// swapped in tests
var (
	now           = time.Now
	placeholderID = func() string {
		return fmt.Sprintf("product-%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:7])
	}
)

// Normalize converts an inference reply into a bot Message. It never fails: cards
// without a product id get a fresh placeholder id on every call.
func Normalize(resp *inference.Response) Message {
	msg := Message{Sender: SenderBot, Timestamp: now(), Type: TypeText}
	if resp == nil {
		return msg
	}
	msg.Text = resp.Message.Text

	rich := resp.Message.RichContent
	if len(rich) == 0 || !hasCard(rich) {
		return msg
	}

	category := resp.Context.Category
	if category == "" {
		category = unknownCategory
	}
	products := make([]ProductSummary, 0, len(rich))
	for _, rc := range rich {
		if rc.Type != cardType {
			continue
		}
		products = append(products, summarize(rc, category))
	}
	return Message{
		Type:      TypeProductRecommendation,
		Sender:    SenderBot,
		Timestamp: msg.Timestamp,
		Recommendation: &Recommendation{
			IntroText: resp.Message.Text,
			Products:  products,
		},
	}
}

func hasCard(rich []inference.RichContent) bool {
	for _, rc := range rich {
		if rc.Type == cardType {
			return true
		}
	}
	return false
}

func summarize(card inference.RichContent, category string) ProductSummary {
	id := productID(card.Buttons)
	if id == "" {
		id = placeholderID()
	}
	image := card.ImageURL
	if image == "" {
		image = fallbackImageURL
	}
	return ProductSummary{
		ID:          id,
		Name:        card.Title,
		Description: card.Subtitle,
		Price:       0,
		ImageURL:    image,
		Category:    category,
		Features:    []string{},
	}
}

// productID returns the first non-empty product_id found in button metadata.
func productID(buttons []inference.Button) string {
	for _, b := range buttons {
		switch v := b.Metadata["product_id"].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}

// UserMessage wraps text typed by the customer.
func UserMessage(text string) Message {
	return Message{Type: TypeText, Sender: SenderUser, Timestamp: now(), Text: text}
}

// Transcript replays stored history as text messages. Recommendations were stored
// by their intro text, so they come back as plain bot text.
func Transcript(turns []inference.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == "user" {
			out = append(out, UserMessage(t.Content))
			continue
		}
		out = append(out, Message{Type: TypeText, Sender: SenderBot, Timestamp: now(), Text: t.Content})
	}
	return out
}
