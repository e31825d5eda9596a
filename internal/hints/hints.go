package hints

import (
	"strings"

	"support-chat-backend/internal/inference"
)

const (
	StageGreeting        = "greeting"
	StageExploring       = "exploring"
	StageTroubleshooting = "troubleshooting"
	StageSupport         = "support"
	StagePurchase        = "purchase"
)

const (
	IntentBrowse       = "browse"
	IntentPurchase     = "purchase"
	IntentReturn       = "return"
	IntentWarranty     = "warranty"
	IntentTrackOrder   = "track-order"
	IntentTroubleshoot = "troubleshoot"
	IntentRefurbished  = "refurbished"
)

// Hints is what has been learned about the customer over a conversation.
type Hints struct {
	Intents  []string `json:"intents,omitempty"`
	Products []string `json:"products,omitempty"`
	Rooms    []string `json:"rooms,omitempty"`
	Features []string `json:"features,omitempty"`
	Issues   []string `json:"issues,omitempty"`
	Stage    string   `json:"stage,omitempty"`
}

type rule struct {
	value   string
	needles []string
}

var intentRules = []rule{
	{IntentReturn, []string{"return", "refund", "send back", "send it back", "exchange"}},
	{IntentWarranty, []string{"warranty", "register my", "guarantee"}},
	{IntentTrackOrder, []string{"track", "order status", "where is my order", "order number", "delivery"}},
	{IntentTroubleshoot, []string{
		"not working", "stopped working", "isn't working", "doesn't work", "broken", "won't",
		"not opening", "not closing", "problem", "issue", "fix", "randomly", "leak", "clog", "unravel",
	}},
	{IntentRefurbished, []string{"refurb", "pricey", "cheaper", "budget", "discount"}},
	{IntentPurchase, []string{"buy", "purchase", "add to cart", "i'll take", "checkout", "how much", "price"}},
	{IntentBrowse, []string{
		"looking for", "need a", "need new", "need something", "recommend", "show me", "options",
		"compare", "difference", "which one", "what do you have",
	}},
}

var productRules = []rule{
	{"trash-can", []string{"trash", "garbage", "waste bin", "bin ", "step can", "sensor can", "recycl"}},
	{"soap-dispenser", []string{"soap", "dispenser", "sanitizer", "sensor pump"}},
	{"mirror", []string{"mirror"}},
	{"paper-towel", []string{"paper towel", "towel holder"}},
	{"dish-rack", []string{"dish rack", "dishrack", "drying rack"}},
}

var roomRules = []rule{
	{"kitchen", []string{"kitchen"}},
	{"bathroom", []string{"bathroom", "bath room", "restroom"}},
	{"office", []string{"office", "desk"}},
	{"bedroom", []string{"bedroom"}},
	{"living", []string{"living room"}},
	{"utility", []string{"utility", "laundry", "garage"}},
	{"travel", []string{"travel"}},
}

var featureRules = []rule{
	{"Sensor", []string{"sensor", "touchless", "touch-free", "hands-free", "motion"}},
	{"Voice Control", []string{"voice"}},
	{"Dual Compartment", []string{"dual compartment", "separate recycling", "recycl"}},
	{"Step Pedal", []string{"step can", "pedal"}},
	{"Rechargeable", []string{"rechargeable", "recharge"}},
	{"Foaming", []string{"foam"}},
	{"Wall Mount", []string{"wall mount", "wall-mount", "mounted"}},
	{"Compact", []string{"compact", "small"}},
	{"Slim Profile", []string{"slim", "narrow", "tight space"}},
	{"Magnification", []string{"magnif"}},
	{"Alexa", []string{"alexa"}},
	{"Spray Pump", []string{"spray"}},
	{"Liner Pocket", []string{"liner"}},
}

var issueRules = []rule{
	{"lid-not-opening", []string{"not opening", "won't open", "doesn't open"}},
	{"lid-not-closing", []string{"not closing", "won't close", "doesn't close"}},
	{"voice-control-not-working", []string{"voice control not", "voice command"}},
	{"pedal-not-working", []string{"pedal not", "pedal isn't", "pedal doesn't"}},
	{"not-dispensing", []string{"not dispensing", "isn't dispensing", "won't dispense", "no soap comes"}},
	{"random-dispensing", []string{"randomly", "by itself", "without anyone"}},
	{"clogged-nozzle", []string{"clog"}},
	{"leaking", []string{"leak"}},
	{"unraveling", []string{"unravel"}},
	{"spray-pump-not-working", []string{"spray pump not", "spray isn't", "spray doesn't"}},
}

// Extract applies keyword heuristics to a single customer message.
func Extract(message string) Hints {
	m := strings.ToLower(strings.TrimSpace(message))
	if m == "" {
		return Hints{}
	}
	return Hints{
		Intents:  match(m, intentRules),
		Products: match(m, productRules),
		Rooms:    match(m, roomRules),
		Features: match(m, featureRules),
		Issues:   match(m, issueRules),
	}
}

// Observe folds the next customer message into h. turn is the zero-based index of
// the message within the conversation.
func (h Hints) Observe(message string, turn int) Hints {
	next := Extract(message)
	out := Hints{
		Intents:  union(h.Intents, next.Intents),
		Products: union(h.Products, next.Products),
		Rooms:    union(h.Rooms, next.Rooms),
		Features: union(h.Features, next.Features),
		Issues:   union(h.Issues, next.Issues),
	}
	out.Stage = stage(h.Stage, next, turn)
	return out
}

// stage is decided by the latest message; with no signal the previous stage carries
// over, except that a greeting always moves on to exploring.
func stage(prev string, latest Hints, turn int) string {
	switch {
	case has(latest.Intents, IntentTroubleshoot) || len(latest.Issues) > 0:
		return StageTroubleshooting
	case has(latest.Intents, IntentReturn), has(latest.Intents, IntentWarranty), has(latest.Intents, IntentTrackOrder):
		return StageSupport
	case has(latest.Intents, IntentPurchase):
		return StagePurchase
	case turn == 0 && len(latest.Intents) == 0:
		return StageGreeting
	case has(latest.Intents, IntentBrowse), has(latest.Intents, IntentRefurbished), len(latest.Products) > 0:
		return StageExploring
	case prev == "" || prev == StageGreeting:
		return StageExploring
	default:
		return prev
	}
}

// Context turns accumulated hints plus history into the context forwarded to the
// model. Non-empty fields of explicit win over the accumulated ones.
func (h Hints) Context(history []inference.Turn, explicit *inference.ConversationContext) *inference.ConversationContext {
	ctx := &inference.ConversationContext{
		UserIntents:       h.Intents,
		ProductInterests:  h.Products,
		RoomTypes:         h.Rooms,
		Features:          h.Features,
		Issues:            h.Issues,
		ConversationStage: h.Stage,
		History:           history,
	}
	if explicit == nil {
		return ctx
	}
	pick(&ctx.UserIntents, explicit.UserIntents)
	pick(&ctx.ProductInterests, explicit.ProductInterests)
	pick(&ctx.RoomTypes, explicit.RoomTypes)
	pick(&ctx.Features, explicit.Features)
	pick(&ctx.Issues, explicit.Issues)
	if explicit.ConversationStage != "" {
		ctx.ConversationStage = explicit.ConversationStage
	}
	if len(explicit.History) > 0 {
		ctx.History = explicit.History
	}
	return ctx
}

func pick(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func match(s string, rules []rule) []string {
	var out []string
	for _, r := range rules {
		if containsAny(s, r.needles) {
			out = append(out, r.value)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		if !has(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func has(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
