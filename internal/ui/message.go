package ui

type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is one entry of the conversation. Pending marks the assistant
// placeholder of the request in flight, Failed one whose request failed.
type Message struct {
	Origin  Origin
	Text    string
	Pending bool
	Failed  bool
}
