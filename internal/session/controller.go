package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/automation-creator/internal/conversation"
	"github.com/nerrad567/automation-creator/internal/host"
	"github.com/nerrad567/automation-creator/internal/submission"
)

// Options configures a Controller.
type Options struct {
	// Mode defaults to guided.
	Mode Mode

	// Questions for guided mode. Defaults to conversation.DefaultQuestions.
	Questions []string

	// Policy is used to build the default submitter.
	Policy submission.Policy

	// Submitter overrides the orchestrator built from the host connection.
	Submitter Submitter

	Logger Logger
}

// Controller owns one session.
//
// Thread Safety: all methods are safe for concurrent use. Listeners are
// called without the controller lock held. Every change is numbered under
// the lock, and a change that loses the race to a later one is not
// delivered, so the last state a listener sees is the current one.
type Controller struct {
	id     string
	mode   Mode
	logger Logger
	now    func() time.Time

	mu        sync.Mutex
	phase     Phase
	engine    *conversation.Engine // nil in single mode
	pending   *submission.Request
	outcome   *submission.Outcome
	submitter Submitter
	updatedAt time.Time
	seq       uint64 // bumped by every change
	closed    bool

	listenerMu sync.Mutex
	listeners  map[int]func(State)
	nextID     int

	notifyMu  sync.Mutex
	delivered uint64 // seq of the last state handed to listeners
}

// New creates a controller in the collecting phase.
//
// conn is the host the submissions go to. It is only used to build the
// default submitter and may be nil when opts.Submitter is set.
func New(conn host.Connection, opts Options) (*Controller, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	submitter := opts.Submitter
	if submitter == nil {
		if conn == nil {
			return nil, fmt.Errorf("session: host connection is required")
		}
		submitter = submission.New(conn, opts.Policy, logger)
	}

	c := &Controller{
		id:        uuid.NewString(),
		mode:      mode,
		logger:    logger,
		now:       time.Now,
		phase:     PhaseCollecting,
		submitter: submitter,
		listeners: make(map[int]func(State)),
	}
	c.updatedAt = c.now().UTC()

	if mode == ModeGuided {
		questions := opts.Questions
		if len(questions) == 0 {
			questions = conversation.DefaultQuestions
		}
		c.engine, err = conversation.NewEngine(questions)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Mode returns the session mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SubmitAnswer records an answer to the current guided question.
func (c *Controller) SubmitAnswer(text string) (State, error) {
	c.mu.Lock()

	if c.closed {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrSessionClosed
	}
	if c.engine == nil {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrWrongMode
	}
	if c.phase != PhaseCollecting {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, c.phaseErrorLocked()
	}
	if err := c.engine.SubmitAnswer(text); err != nil {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, err
	}

	s := c.touchLocked()
	c.mu.Unlock()

	c.notify(s)
	return s, nil
}

// Submit runs a submission and returns the resolved state.
//
// In single mode text is the description. In guided mode text is ignored
// and the completed transcript is submitted.
func (c *Controller) Submit(ctx context.Context, text string) (State, error) {
	_, done, err := c.StartSubmit(ctx, text)
	if err != nil {
		return c.State(), err
	}
	return <-done, nil
}

// StartSubmit enters the submitting phase and resolves the submission in a
// new goroutine.
//
// It returns the submitting state and a channel that receives the final
// state once. Returns ErrSubmissionInFlight while another submission is
// running, ErrNotCollecting after a finished submission, and
// conversation.ErrNotComplete or conversation.ErrEmptyInput when there is
// nothing to submit, and ErrSessionClosed after Close. No backend call is
// made when an error is returned.
func (c *Controller) StartSubmit(ctx context.Context, text string) (State, <-chan State, error) {
	c.mu.Lock()

	if c.closed {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, nil, ErrSessionClosed
	}

	if c.phase != PhaseCollecting {
		s := c.snapshotLocked()
		err := c.phaseErrorLocked()
		c.mu.Unlock()
		return s, nil, err
	}

	req, err := c.buildRequestLocked(text)
	if err != nil {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, nil, err
	}

	c.phase = PhaseSubmitting
	c.pending = &req
	c.outcome = nil
	submitting := c.touchLocked()
	c.mu.Unlock()

	c.notify(submitting)
	c.logger.Info("submission started", "session_id", c.id, "mode", string(c.mode))

	done := make(chan State, 1)
	go func() {
		done <- c.resolve(ctx, req)
	}()

	return submitting, done, nil
}

// resolve runs the submitter and leaves the session in done or error.
func (c *Controller) resolve(ctx context.Context, req submission.Request) State {
	outcome := c.runSubmitter(ctx, req)

	c.mu.Lock()
	c.pending = nil
	c.outcome = &outcome
	if outcome.Kind == submission.KindFailure {
		c.phase = PhaseError
	} else {
		c.phase = PhaseDone
	}
	final := c.touchLocked()
	c.mu.Unlock()

	c.logger.Info("submission finished",
		"session_id", c.id,
		"phase", string(final.Phase),
		"outcome", outcome.Kind.String(),
	)
	c.notify(final)
	return final
}

// runSubmitter converts a panicking submitter into a failure outcome.
func (c *Controller) runSubmitter(ctx context.Context, req submission.Request) (outcome submission.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("submitter panic recovered", "session_id", c.id, "panic", r)
			outcome = submission.Failure(fmt.Sprintf("Unexpected error: %v", r))
		}
	}()
	return c.submitter.Submit(ctx, req)
}

// Reset returns the session to collecting with a fresh conversation.
// Returns ErrResetNotAllowed while submitting.
func (c *Controller) Reset() (State, error) {
	c.mu.Lock()

	if c.closed {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrSessionClosed
	}
	if c.phase == PhaseSubmitting {
		s := c.snapshotLocked()
		c.mu.Unlock()
		return s, ErrResetNotAllowed
	}

	if c.engine != nil {
		c.engine.Reset()
	}
	c.phase = PhaseCollecting
	c.pending = nil
	c.outcome = nil
	s := c.touchLocked()
	c.mu.Unlock()

	c.notify(s)
	return s, nil
}

// Close retires the session. It fails with ErrSubmissionInFlight while a
// submission runs; the check and the close share the lock StartSubmit
// takes, so a submission can never start on a closed session. Later
// input fails with ErrSessionClosed. Closing twice is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseSubmitting {
		return ErrSubmissionInFlight
	}
	c.closed = true
	return nil
}

// Subscribe registers fn for every state change. The returned function
// removes it.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *Controller) notify(s State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if s.seq <= c.delivered {
		return
	}
	c.delivered = s.seq

	c.listenerMu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *Controller) buildRequestLocked(text string) (submission.Request, error) {
	if c.engine != nil {
		transcript, err := c.engine.Transcript()
		if err != nil {
			return submission.Request{}, err
		}
		return submission.Request{Description: transcript}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return submission.Request{}, conversation.ErrEmptyInput
	}
	return submission.Request{Description: text}, nil
}

func (c *Controller) phaseErrorLocked() error {
	if c.phase == PhaseSubmitting {
		return ErrSubmissionInFlight
	}
	return ErrNotCollecting
}

func (c *Controller) touchLocked() State {
	c.seq++
	c.updatedAt = c.now().UTC()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := State{
		ID:        c.id,
		Mode:      c.mode,
		Phase:     c.phase,
		UpdatedAt: c.updatedAt,
		seq:       c.seq,
	}

	if c.engine != nil {
		s.Messages = c.engine.Messages()
		s.StepIndex = c.engine.Index()
		s.StepCount = c.engine.Len()
		s.Complete = c.engine.Complete()
		if step, ok := c.engine.Current(); ok {
			s.CurrentPrompt = step.Prompt
		}
	}

	if c.pending != nil {
		s.PendingDescription = c.pending.Description
	}

	if o := c.outcome; o != nil {
		s.Outcome = o.Kind.String()
		switch o.Kind {
		case submission.KindSuccess:
			s.ResultText = o.ResultText
		case submission.KindFailure:
			s.ErrorText = o.ErrorText
		case submission.KindPendingFetch:
			s.Info = infoPending
			if o.Corroborated {
				s.Info = infoPendingCorroborated
			}
		}
	}

	return s
}
