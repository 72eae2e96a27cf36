package conversation

import (
	"strings"
)

// transcriptSeparator joins prompt/answer pairs in the transcript.
const transcriptSeparator = "\n\n"

// Engine sequences a fixed list of questions and accumulates the answers.
type Engine struct {
	steps    []Step
	current  int // index of the next unanswered step; len(steps) when complete
	messages []Message
}

// NewEngine creates an engine for the given questions and seeds the message
// log with the first question.
func NewEngine(questions []string) (*Engine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	e := &Engine{steps: make([]Step, len(questions))}
	for i, q := range questions {
		e.steps[i] = Step{Prompt: q}
	}
	e.Reset()
	return e, nil
}

// Current returns the next unanswered step. The boolean is false once the
// engine is complete.
func (e *Engine) Current() (Step, bool) {
	if e.Complete() {
		return Step{}, false
	}
	return e.steps[e.current], true
}

// Index returns the zero-based position of the current step. It equals
// Len() when the engine is complete.
func (e *Engine) Index() int {
	return e.current
}

// Len returns the number of questions.
func (e *Engine) Len() int {
	return len(e.steps)
}

// Complete reports whether every question has been answered.
func (e *Engine) Complete() bool {
	return e.current >= len(e.steps)
}

// SubmitAnswer records text as the answer to the current step.
//
// The user's answer is appended to the log, followed by the next question if
// one remains. Answering the final question completes the engine without
// appending anything further.
//
// Returns ErrEmptyInput for blank text and ErrComplete when every question
// has already been answered. Neither error changes the engine state.
func (e *Engine) SubmitAnswer(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	if e.Complete() {
		return ErrComplete
	}

	e.steps[e.current].Answer = text
	e.messages = append(e.messages, Message{Sender: SenderUser, Content: text})
	e.current++

	if !e.Complete() {
		e.messages = append(e.messages, Message{
			Sender:  SenderAssistant,
			Content: e.steps[e.current].Prompt,
		})
	}
	return nil
}

// Reset clears all answers and the message log, returns to the first question,
// and seeds the log with that question.
func (e *Engine) Reset() {
	for i := range e.steps {
		e.steps[i].Answer = ""
	}
	e.current = 0
	e.messages = []Message{{Sender: SenderAssistant, Content: e.steps[0].Prompt}}
}

// Messages returns a copy of the message log.
func (e *Engine) Messages() []Message {
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Steps returns a copy of the step sequence.
func (e *Engine) Steps() []Step {
	out := make([]Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// Transcript joins every prompt and its answer, in question order, with pairs
// separated by a blank line.
//
// Returns ErrNotComplete if any question is still unanswered.
func (e *Engine) Transcript() (string, error) {
	if !e.Complete() {
		return "", ErrNotComplete
	}
	pairs := make([]string, len(e.steps))
	for i, s := range e.steps {
		pairs[i] = s.Prompt + "\n" + s.Answer
	}
	return strings.Join(pairs, transcriptSeparator), nil
}
