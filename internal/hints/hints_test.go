package hints

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-chat-backend/internal/inference"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		message string
		want    Hints
	}{
		{
			message: "I need a new trash can for my kitchen",
			want:    Hints{Intents: []string{IntentBrowse}, Products: []string{"trash-can"}, Rooms: []string{"kitchen"}},
		},
		{
			message: "My soap dispenser stopped working",
			want:    Hints{Intents: []string{IntentTroubleshoot}, Products: []string{"soap-dispenser"}},
		},
		{
			message: "It's dispensing randomly without anyone near it",
			want:    Hints{Intents: []string{IntentTroubleshoot}, Issues: []string{"random-dispensing"}},
		},
		{
			message: "I'd like to return the trash can I bought last week",
			want:    Hints{Intents: []string{IntentReturn}, Products: []string{"trash-can"}},
		},
		{
			message: "Do you have any refurbished soap dispensers?",
			want:    Hints{Intents: []string{IntentRefurbished}, Products: []string{"soap-dispenser"}},
		},
		{
			message: "Something SLIM with a Pedal for the office",
			want:    Hints{Rooms: []string{"office"}, Features: []string{"Step Pedal", "Slim Profile"}},
		},
		{message: "   ", want: Hints{}},
	}
	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.message))
		})
	}
}

func TestObserveStages(t *testing.T) {
	var h Hints

	h = h.Observe("hello there", 0)
	assert.Equal(t, StageGreeting, h.Stage)

	h = h.Observe("I'd prefer something with a sensor", 1)
	assert.Equal(t, StageExploring, h.Stage)
	assert.Equal(t, []string{"Sensor"}, h.Features)

	h = h.Observe("ok", 2)
	assert.Equal(t, StageExploring, h.Stage, "no signal keeps the previous stage")

	h = h.Observe("Yes, I'll take it with the discount", 3)
	assert.Equal(t, StagePurchase, h.Stage)

	h = h.Observe("where is my order?", 4)
	assert.Equal(t, StageSupport, h.Stage)

	h = h.Observe("the lid won't close", 5)
	assert.Equal(t, StageTroubleshooting, h.Stage)
	assert.Equal(t, []string{"lid-not-closing"}, h.Issues)

	assert.Equal(t, []string{IntentPurchase, IntentRefurbished, IntentTrackOrder, IntentTroubleshoot}, sorted(h.Intents))
}

func TestObserveFirstTurnWithIntent(t *testing.T) {
	h := Hints{}.Observe("My soap dispenser is leaking", 0)
	assert.Equal(t, StageTroubleshooting, h.Stage)
	assert.Equal(t, []string{"leaking"}, h.Issues)
}

func TestObserveDoesNotAliasPrevious(t *testing.T) {
	base := Hints{Rooms: make([]string, 1, 4)}
	base.Rooms[0] = "kitchen"
	a := base.Observe("for the bathroom", 1)
	b := base.Observe("for the office", 1)
	assert.Equal(t, []string{"kitchen", "bathroom"}, a.Rooms)
	assert.Equal(t, []string{"kitchen", "office"}, b.Rooms)
}

func TestContextExplicitWins(t *testing.T) {
	h := Hints{Intents: []string{IntentBrowse}, Rooms: []string{"kitchen"}, Stage: StageExploring}
	history := []inference.Turn{{Role: "user", Content: "hi"}}

	ctx := h.Context(history, nil)
	assert.Equal(t, []string{IntentBrowse}, ctx.UserIntents)
	assert.Equal(t, []string{"kitchen"}, ctx.RoomTypes)
	assert.Equal(t, StageExploring, ctx.ConversationStage)
	assert.Equal(t, history, ctx.History)

	ctx = h.Context(history, &inference.ConversationContext{
		RoomTypes:         []string{"bathroom"},
		ConversationStage: StagePurchase,
	})
	assert.Equal(t, []string{"bathroom"}, ctx.RoomTypes)
	assert.Equal(t, []string{IntentBrowse}, ctx.UserIntents)
	assert.Equal(t, StagePurchase, ctx.ConversationStage)
	assert.Equal(t, history, ctx.History)
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
