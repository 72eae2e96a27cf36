package conversation

// Sender identifies who authored a message in the conversation log.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in the conversation log.
type Message struct {
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// Step is a single clarifying question and the answer given to it.
// Answer is empty until the step has been answered.
type Step struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer,omitempty"`
}

// DefaultQuestions is the question sequence used when none is configured.
var DefaultQuestions = []string{
	"What should trigger this automation? For example a time of day, sunset, motion, or a door opening.",
	"Which devices or rooms should be involved?",
	"What should happen when the automation runs?",
	"Are there any conditions, such as only at night or only when someone is home?",
}
