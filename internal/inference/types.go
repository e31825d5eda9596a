package inference

// Turn is one prior exchange forwarded as conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationContext carries optional hints for the remote model. Empty fields are
// left out of the outgoing payload.
type ConversationContext struct {
	UserIntents       []string
	ProductInterests  []string
	RoomTypes         []string
	Features          []string
	Issues            []string
	ConversationStage string
	History           []Turn
}

// Response is the remote inference reply.
type Response struct {
	Message Reply           `json:"message"`
	Context ResponseContext `json:"context"`
}

type Reply struct {
	Text        string        `json:"text"`
	RichContent []RichContent `json:"rich_content,omitempty"`
	Suggestions []Suggestion  `json:"suggestions,omitempty"`
}

// RichContent is a structured reply element; type "card" describes a product.
type RichContent struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	ImageURL string   `json:"image_url"`
	Buttons  []Button `json:"buttons"`
}

type Button struct {
	Label    string         `json:"label"`
	Action   string         `json:"action"`
	URL      string         `json:"url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Suggestion struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

type ResponseContext struct {
	CustomerIntent        string `json:"customer_intent"`
	Category              string `json:"category,omitempty"`
	RefurbishmentInterest *bool  `json:"refurbishment_interest,omitempty"`
}

// Session is the authenticated user a request is sent on behalf of.
type Session struct {
	UserID      string
	AccessToken string
}

// wire payload

type requestPayload struct {
	Message     string              `json:"message"`
	UserID      string              `json:"user_id"`
	Preferences *preferencesPayload `json:"preferences,omitempty"`
	History     []Turn              `json:"history,omitempty"`
}

type preferencesPayload struct {
	UserIntents       []string `json:"user_intents,omitempty"`
	ProductInterests  []string `json:"product_interests,omitempty"`
	RoomTypes         []string `json:"room_types,omitempty"`
	Features          []string `json:"features,omitempty"`
	Issues            []string `json:"issues,omitempty"`
	ConversationStage string   `json:"conversation_stage,omitempty"`
}

func (p *preferencesPayload) empty() bool {
	return len(p.UserIntents) == 0 && len(p.ProductInterests) == 0 && len(p.RoomTypes) == 0 &&
		len(p.Features) == 0 && len(p.Issues) == 0 && p.ConversationStage == ""
}

func buildPayload(message string, sess *Session, cc *ConversationContext) requestPayload {
	payload := requestPayload{Message: message, UserID: sess.UserID}
	if cc == nil {
		return payload
	}
	prefs := &preferencesPayload{
		UserIntents:       cc.UserIntents,
		ProductInterests:  cc.ProductInterests,
		RoomTypes:         cc.RoomTypes,
		Features:          cc.Features,
		Issues:            cc.Issues,
		ConversationStage: cc.ConversationStage,
	}
	if !prefs.empty() {
		payload.Preferences = prefs
	}
	payload.History = cc.History
	return payload
}

// wireResponse mirrors Response with pointers so required fields can be checked.
type wireResponse struct {
	Message *struct {
		Text        *string       `json:"text"`
		RichContent []RichContent `json:"rich_content"`
		Suggestions []Suggestion  `json:"suggestions"`
	} `json:"message"`
	Context ResponseContext `json:"context"`
}

func (w wireResponse) toResponse() (*Response, bool) {
	if w.Message == nil || w.Message.Text == nil {
		return nil, false
	}
	return &Response{
		Message: Reply{
			Text:        *w.Message.Text,
			RichContent: w.Message.RichContent,
			Suggestions: w.Message.Suggestions,
		},
		Context: w.Context,
	}, true
}
