package conversation

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

var testQuestions = []string{
	"What should trigger it?",
	"Which devices?",
	"What should happen?",
}

func newTestEngine(t *testing.T, questions []string) *Engine {
	t.Helper()
	e, err := NewEngine(questions)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func answerAll(t *testing.T, e *Engine, answers ...string) {
	t.Helper()
	for _, a := range answers {
		if err := e.SubmitAnswer(a); err != nil {
			t.Fatalf("SubmitAnswer(%q) error = %v", a, err)
		}
	}
}

func TestNewEngine_NoQuestions(t *testing.T) {
	_, err := NewEngine(nil)
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("NewEngine(nil) error = %v, want ErrNoQuestions", err)
	}
}

func TestNewEngine_InitialState(t *testing.T) {
	e := newTestEngine(t, testQuestions)

	step, ok := e.Current()
	if !ok {
		t.Fatal("Current() reported complete on a new engine")
	}
	if step.Prompt != testQuestions[0] {
		t.Errorf("Current().Prompt = %q, want %q", step.Prompt, testQuestions[0])
	}

	msgs := e.Messages()
	want := []Message{{Sender: SenderAssistant, Content: testQuestions[0]}}
	if !reflect.DeepEqual(msgs, want) {
		t.Errorf("Messages() = %+v, want %+v", msgs, want)
	}
}

func TestEngine_SubmitAnswer_Advances(t *testing.T) {
	e := newTestEngine(t, testQuestions)

	if err := e.SubmitAnswer("sunset"); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	step, ok := e.Current()
	if !ok || step.Prompt != testQuestions[1] {
		t.Errorf("Current() = %+v, %v; want second question", step, ok)
	}

	want := []Message{
		{Sender: SenderAssistant, Content: testQuestions[0]},
		{Sender: SenderUser, Content: "sunset"},
		{Sender: SenderAssistant, Content: testQuestions[1]},
	}
	if got := e.Messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("Messages() = %+v, want %+v", got, want)
	}
}

func TestEngine_SubmitAnswer_LastStepCompletes(t *testing.T) {
	e := newTestEngine(t, testQuestions)
	answerAll(t, e, "sunset", "porch light", "turn it on")

	if !e.Complete() {
		t.Fatal("Complete() = false after answering every question")
	}
	if _, ok := e.Current(); ok {
		t.Error("Current() returned a step after completion")
	}

	msgs := e.Messages()
	last := msgs[len(msgs)-1]
	if last.Sender != SenderUser || last.Content != "turn it on" {
		t.Errorf("last message = %+v, want the final user answer", last)
	}
	// 1 seed + 3 answers + 2 follow-up prompts
	if len(msgs) != 6 {
		t.Errorf("len(Messages()) = %d, want 6", len(msgs))
	}
}

func TestEngine_SubmitAnswer_EmptyInputRejected(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "spaces", input: "   "},
		{name: "whitespace mix", input: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, testQuestions)
			answerAll(t, e, "sunset")

			beforeStep, _ := e.Current()
			beforeMsgs := e.Messages()

			err := e.SubmitAnswer(tt.input)
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("SubmitAnswer(%q) error = %v, want ErrEmptyInput", tt.input, err)
			}

			afterStep, _ := e.Current()
			if afterStep != beforeStep {
				t.Errorf("Current() changed from %+v to %+v", beforeStep, afterStep)
			}
			if !reflect.DeepEqual(e.Messages(), beforeMsgs) {
				t.Error("message log changed after rejected input")
			}
		})
	}
}

func TestEngine_SubmitAnswer_AfterComplete(t *testing.T) {
	e := newTestEngine(t, testQuestions)
	answerAll(t, e, "a", "b", "c")
	before := e.Messages()

	if err := e.SubmitAnswer("extra"); !errors.Is(err, ErrComplete) {
		t.Errorf("SubmitAnswer() after completion error = %v, want ErrComplete", err)
	}
	if !reflect.DeepEqual(e.Messages(), before) {
		t.Error("message log changed after answering a complete engine")
	}
}

func TestEngine_Transcript(t *testing.T) {
	e := newTestEngine(t, testQuestions)
	answerAll(t, e, "sunset", "porch light", "turn it on")

	got, err := e.Transcript()
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}

	want := "What should trigger it?\nsunset\n\n" +
		"Which devices?\nporch light\n\n" +
		"What should happen?\nturn it on"
	if got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}

func TestEngine_Transcript_NotComplete(t *testing.T) {
	for answered := 0; answered < len(testQuestions); answered++ {
		e := newTestEngine(t, testQuestions)
		for i := 0; i < answered; i++ {
			answerAll(t, e, "answer")
		}
		if _, err := e.Transcript(); !errors.Is(err, ErrNotComplete) {
			t.Errorf("Transcript() with %d answers error = %v, want ErrNotComplete", answered, err)
		}
	}
}

func TestEngine_Transcript_Deterministic(t *testing.T) {
	questions := []string{"Q1", "Q2", "Q3", "Q4", "Q5"}
	answers := []string{"a1", "a2", "a3", "a4", "a5"}

	e := newTestEngine(t, questions)
	answerAll(t, e, answers...)

	first, err := e.Transcript()
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	second, _ := e.Transcript()
	if first != second {
		t.Error("Transcript() is not stable across calls")
	}

	parts := strings.Split(first, transcriptSeparator)
	if len(parts) != len(questions) {
		t.Fatalf("transcript has %d pairs, want %d", len(parts), len(questions))
	}
	for i, p := range parts {
		want := questions[i] + "\n" + answers[i]
		if p != want {
			t.Errorf("pair %d = %q, want %q", i, p, want)
		}
	}
}

func TestEngine_Reset(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
	}{
		{name: "fresh", answers: nil},
		{name: "mid-way", answers: []string{"sunset"}},
		{name: "complete", answers: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, testQuestions)
			answerAll(t, e, tt.answers...)

			e.Reset()

			step, ok := e.Current()
			if !ok || step.Prompt != testQuestions[0] || step.Answer != "" {
				t.Errorf("Current() after Reset = %+v, %v; want first question unanswered", step, ok)
			}
			want := []Message{{Sender: SenderAssistant, Content: testQuestions[0]}}
			if got := e.Messages(); !reflect.DeepEqual(got, want) {
				t.Errorf("Messages() after Reset = %+v, want %+v", got, want)
			}
			for i, s := range e.Steps() {
				if s.Answer != "" {
					t.Errorf("step %d answer = %q after Reset, want empty", i, s.Answer)
				}
			}
		})
	}
}

func TestEngine_MessagesReturnsCopy(t *testing.T) {
	e := newTestEngine(t, testQuestions)
	msgs := e.Messages()
	msgs[0].Content = "mutated"

	if e.Messages()[0].Content != testQuestions[0] {
		t.Error("mutating Messages() result changed engine state")
	}
}
