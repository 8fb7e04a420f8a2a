package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNotActive      = errors.New("wizard is not at a step")
	ErrUnknownStep    = errors.New("unknown step")
	ErrNotCurrentStep = errors.New("step is not the current step")
	ErrUnknownOption  = errors.New("unknown option")
	ErrWrongKind      = errors.New("operation does not apply to this step kind")
	ErrNotAnswered    = errors.New("current step is not answered")
	ErrFirstStep      = errors.New("already at the first step")
	ErrLastStep       = errors.New("already at the last step")
	ErrNotLastStep    = errors.New("submit is only available on the last step")
	ErrSubmitting     = errors.New("a submission is already in flight")
	ErrNotSkippable   = errors.New("this wizard cannot be skipped")
	ErrNoGateway      = errors.New("no submission gateway configured")
)

// Gateway sends a flattened answer map to the backend.
type Gateway interface {
	Submit(ctx context.Context, body map[string]any) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, body map[string]any) error

func (f GatewayFunc) Submit(ctx context.Context, body map[string]any) error {
	return f(ctx, body)
}

// Outcome is delivered once when the session reaches a terminal state.
type Outcome struct {
	State   State
	Answers map[string]any
}

// Controller drives one wizard session over a catalog. It is safe for
// concurrent use; Submit releases the lock while the gateway runs so
// that readers see Submitting.
type Controller struct {
	mu        sync.Mutex
	catalog   *Catalog
	answers   *AnswerStore
	gateway   Gateway
	state     State
	lastError string
	done      chan Outcome
	logger    *zap.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAnswers seeds the session, e.g. with a previous attempt.
func WithAnswers(s *AnswerStore) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.answers = s.Clone()
		}
	}
}

// New starts a session at the first step with an empty answer store.
func New(catalog *Catalog, gateway Gateway, opts ...ControllerOption) *Controller {
	c := &Controller{
		catalog: catalog,
		answers: NewAnswerStore(),
		gateway: gateway,
		state:   AtStep{Index: 0},
		done:    make(chan Outcome, 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("wizard", catalog.Name()))
	return c
}

func (c *Controller) Catalog() *Catalog { return c.catalog }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Index returns the current step index while the session is at a step.
func (c *Controller) Index() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.state.(AtStep)
	return at.Index, ok
}

// LastError is the message of the most recent failed submission.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Snapshot returns a copy of the answer store.
func (c *Controller) Snapshot() *AnswerStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

func (c *Controller) Answer(id string) (Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Get(id)
}

// Done receives the terminal outcome and is then closed.
func (c *Controller) Done() <-chan Outcome { return c.done }

func (c *Controller) current() (int, error) {
	at, ok := c.state.(AtStep)
	if !ok {
		if _, busy := c.state.(Submitting); busy {
			return 0, ErrSubmitting
		}
		return 0, fmt.Errorf("%w: %s", ErrNotActive, c.state)
	}
	return at.Index, nil
}

// onCurrent resolves id to a definition owned by the current step.
func (c *Controller) onCurrent(id string) (StepDefinition, error) {
	idx, err := c.current()
	if err != nil {
		return StepDefinition{}, err
	}
	def, owner, ok := c.catalog.Lookup(id)
	if !ok {
		return StepDefinition{}, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	if owner != idx {
		return StepDefinition{}, fmt.Errorf("%w: %s", ErrNotCurrentStep, id)
	}
	return def, nil
}

// SelectOption records value for a select step (or group field) of the
// current step. Single kinds replace the value; multi-select toggles it,
// and selections past the bound are ignored.
func (c *Controller) SelectOption(id, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, err := c.onCurrent(id)
	if err != nil {
		return err
	}
	if !def.Kind.Selects() {
		return fmt.Errorf("%w: select on %s step %s", ErrWrongKind, def.Kind, id)
	}
	if _, ok := def.Option(value); !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnknownOption, value, id)
	}

	if def.Kind == KindMultiSelect {
		if !c.answers.Toggle(id, value, def.MaxSelections) {
			c.logger.Debug("selection bound reached", zap.String("step", id), zap.Int("max", def.MaxSelections))
		}
		return nil
	}
	c.answers.Set(id, value)
	return nil
}

// SetText records typed input for a text or upload step of the current step.
func (c *Controller) SetText(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, err := c.onCurrent(id)
	if err != nil {
		return err
	}
	if !def.Kind.FreeForm() {
		return fmt.Errorf("%w: text on %s step %s", ErrWrongKind, def.Kind, id)
	}
	c.answers.Set(id, text)
	return nil
}

// Prefill sets a text step anywhere in the catalog without moving, as
// when a resume scan fills in the skills step ahead.
func (c *Controller) Prefill(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.current(); err != nil {
		return err
	}
	def, _, ok := c.catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	if def.Kind != KindText {
		return fmt.Errorf("%w: prefill on %s step %s", ErrWrongKind, def.Kind, id)
	}
	c.answers.Set(id, text)
	return nil
}

// SetDetails stores the free-text supplement of a specify step. It never
// changes whether the step is answered.
func (c *Controller) SetDetails(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, err := c.onCurrent(id)
	if err != nil {
		return err
	}
	if def.Kind != KindSingleSpecify {
		return fmt.Errorf("%w: details on %s step %s", ErrWrongKind, def.Kind, id)
	}
	c.answers.SetDetails(id, text)
	return nil
}

// NeedsDetails reports whether the chosen option of id opens the
// free-text field.
func (c *Controller) NeedsDetails(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, _, ok := c.catalog.Lookup(id)
	if !ok || def.Kind != KindSingleSpecify {
		return false
	}
	a, ok := c.answers.Get(id)
	if !ok {
		return false
	}
	opt, ok := def.Option(a.Text)
	return ok && opt.Specify
}

// IsStepAnswered reports whether step i holds a non-empty answer. Group
// steps need every field answered. Supplements are ignored.
func (c *Controller) IsStepAnswered(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered(i)
}

func (c *Controller) answered(i int) bool {
	if i < 0 || i >= c.catalog.Len() {
		return false
	}
	for _, d := range c.catalog.answerable(i) {
		if !c.answers.Answered(d.ID) {
			return false
		}
	}
	return true
}

func (c *Controller) passable(i int) bool {
	return c.catalog.steps[i].Optional || c.answered(i)
}

// CanAdvance reports whether Advance would move forward.
func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.state.(AtStep)
	return ok && at.Index < c.catalog.Len()-1 && c.passable(at.Index)
}

// CanSubmit reports whether Submit would start a submission.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.state.(AtStep)
	return ok && at.Index == c.catalog.Len()-1 && c.passable(at.Index)
}

// Advance moves to the next step. It leaves the state unchanged and
// returns ErrNotAnswered while the current step has no answer.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.current()
	if err != nil {
		return err
	}
	if idx >= c.catalog.Len()-1 {
		return ErrLastStep
	}
	if !c.passable(idx) {
		return ErrNotAnswered
	}
	c.state = AtStep{Index: idx + 1}
	return nil
}

// Retreat moves to the previous step without validating the one left.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.current()
	if err != nil {
		return err
	}
	if idx == 0 {
		return ErrFirstStep
	}
	c.state = AtStep{Index: idx - 1}
	return nil
}

// Submit posts the answers through the gateway. On failure the session
// returns to the last step with LastError set so the user can retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	idx, err := c.current()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	last := c.catalog.Len() - 1
	if idx != last {
		c.mu.Unlock()
		return ErrNotLastStep
	}
	if !c.passable(idx) {
		c.mu.Unlock()
		return ErrNotAnswered
	}
	if c.gateway == nil {
		c.mu.Unlock()
		return ErrNoGateway
	}
	body := c.answers.Flatten(c.catalog)
	c.state = Submitting{}
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Debug("submitting answers", zap.Int("fields", len(body)))
	err = c.gateway.Submit(ctx, body)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = AtStep{Index: last}
		c.lastError = err.Error()
		c.logger.Warn("submission failed", zap.Error(err))
		return err
	}
	c.state = Completed{}
	c.finish(body)
	c.logger.Info("wizard completed")
	return nil
}

// Skip leaves a skippable wizard from any step, answered or not.
func (c *Controller) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.current(); err != nil {
		return err
	}
	if !c.catalog.IsSkippable() {
		return ErrNotSkippable
	}
	c.state = Skipped{}
	c.finish(nil)
	c.logger.Info("wizard skipped")
	return nil
}

// Cancel dismisses the wizard without submitting.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.current(); err != nil {
		return err
	}
	c.state = Cancelled{}
	c.finish(nil)
	c.logger.Info("wizard cancelled")
	return nil
}

func (c *Controller) finish(body map[string]any) {
	c.done <- Outcome{State: c.state, Answers: body}
	close(c.done)
}
