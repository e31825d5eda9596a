package chat

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeText                  MessageType = "text"
	TypeProductRecommendation MessageType = "product-recommendation"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a display-ready chat message. Exactly one of Text or Recommendation is
// meaningful, selected by Type.
type Message struct {
	Type           MessageType
	Sender         Sender
	Timestamp      time.Time
	Text           string
	Recommendation *Recommendation
}

type Recommendation struct {
	IntroText string           `json:"introText"`
	Products  []ProductSummary `json:"products"`
}

type ProductSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Category    string   `json:"category"`
	Features    []string `json:"features"`
}

type messageJSON struct {
	Type      MessageType `json:"type"`
	Sender    Sender      `json:"sender"`
	Content   any         `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarshalJSON renders content as a string for text messages and as an object for
// recommendations.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Type: m.Type, Sender: m.Sender, Timestamp: m.Timestamp, Content: m.Text}
	if m.Type == TypeProductRecommendation && m.Recommendation != nil {
		out.Content = m.Recommendation
	}
	return json.Marshal(out)
}

// PlainText is the text a message contributes to conversation history.
func (m Message) PlainText() string {
	if m.Type == TypeProductRecommendation && m.Recommendation != nil {
		return m.Recommendation.IntroText
	}
	return m.Text
}
