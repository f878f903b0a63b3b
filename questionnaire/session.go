package questionnaire

import (
	"sync"

	"CareerBot/model"
)

// Phase is the navigation controller state.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseSubmitting Phase = "submitting"
	PhaseResult     Phase = "result"
)

type event string

const (
	evAdvance event = "advance"
	evRetreat event = "retreat"
	evJump    event = "jump"
	evSubmit  event = "submit"
	evResolve event = "resolve"
	evReject  event = "reject"
	evReset   event = "reset"
	evPreload event = "preload"
)

type phaseKey struct {
	from Phase
	on   event
}

// phaseMachine is the transition table of the navigation controller.
//
//	collecting --advance/retreat/jump--> collecting
//	collecting --submit--> submitting --resolve--> result
//	submitting --reject--> collecting
//	result --jump/retreat--> collecting
//	collecting --preload--> result
//	any --reset--> collecting
var phaseMachine = map[phaseKey]Phase{
	{PhaseCollecting, evAdvance}: PhaseCollecting,
	{PhaseCollecting, evRetreat}: PhaseCollecting,
	{PhaseCollecting, evJump}:    PhaseCollecting,
	{PhaseCollecting, evSubmit}:  PhaseSubmitting,
	{PhaseCollecting, evPreload}: PhaseResult,
	{PhaseSubmitting, evResolve}: PhaseResult,
	{PhaseSubmitting, evReject}:  PhaseCollecting,
	{PhaseResult, evJump}:        PhaseCollecting,
	{PhaseResult, evRetreat}:     PhaseCollecting,
	{PhaseCollecting, evReset}:   PhaseCollecting,
	{PhaseSubmitting, evReset}:   PhaseCollecting,
	{PhaseResult, evReset}:       PhaseCollecting,
}

// Session is one FormSession: the live state of a single questionnaire
// traversal. It is never persisted.
type Session struct {
	mu sync.Mutex

	flow    *Flow
	step    int
	answers Answers
	errors  map[string]string
	flags   map[string]bool
	phase   Phase

	// generation tags in-flight requests; anything resolving under an older generation is dropped.
	generation uint64
	loading    bool
	status     string
	alert      string

	result   *model.RemoteResult
	explorer *Explorer
}

// NewSession opens a traversal of flow at step 0.
func NewSession(flow *Flow) *Session {
	s := &Session{
		flow:    flow,
		answers: make(Answers),
		errors:  make(map[string]string),
		phase:   PhaseCollecting,
	}
	s.recompute()
	return s
}

// Flow returns the questionnaire the session walks.
func (s *Session) Flow() *Flow {
	return s.flow
}

// fire applies ev; it reports false and leaves the phase alone when the table has no entry.
func (s *Session) fire(ev event) bool {
	next, ok := phaseMachine[phaseKey{s.phase, ev}]
	if !ok {
		return false
	}
	if s.phase == PhaseResult && next != PhaseResult {
		s.generation++
		s.explorer = nil
	}
	s.phase = next
	return true
}

func (s *Session) recompute() {
	s.flags = s.flow.flags(s.answers)
}

// Next validates the current step only. On failure the errors are populated and
// the step is kept; on success the session moves forward, or to submitting from
// the last step. It reports whether the step passed validation.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCollecting {
		return false
	}
	s.recompute()
	if errs := s.validateStep(s.step); len(errs) > 0 {
		for field, msg := range errs {
			s.errors[field] = msg
		}
		return false
	}
	s.alert = ""
	if s.step == len(s.flow.Steps)-1 {
		return s.fire(evSubmit)
	}
	s.fire(evAdvance)
	s.step++
	return true
}

// Back moves one step back without re-validating; answers are kept. From the
// result view it returns to the last input step.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseResult:
		s.fire(evRetreat)
	case PhaseCollecting:
		if s.step > 0 {
			s.fire(evRetreat)
			s.step--
		}
	}
}

// Goto jumps to step i bypassing validation. Existing errors are left as they are.
func (s *Session) Goto(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.flow.Steps) {
		return
	}
	if s.fire(evJump) {
		s.step = i
	}
}

// ChangePath jumps from the result view to the flow's change-path step.
func (s *Session) ChangePath() bool {
	if s.flow.ChangePathStep < 0 {
		return false
	}
	s.Goto(s.flow.ChangePathStep)
	return true
}

// Reset returns to step 0, clears answers and errors, and invalidates any
// request still in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fire(evReset)
	s.generation++
	s.step = 0
	s.answers = make(Answers)
	s.errors = make(map[string]string)
	s.loading = false
	s.status = ""
	s.alert = ""
	s.result = nil
	s.explorer = nil
	s.recompute()
}

// Preload enters the result view with a result obtained elsewhere, such as a
// saved artifact handed over from the dashboard. saved[i], when given, is the
// artifact already stored for item i so saving it again removes it.
func (s *Session) Preload(res model.RemoteResult, saved ...model.SavedArtifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fire(evPreload) {
		return false
	}
	s.result = &res
	s.explorer = newExplorer(s)
	for i, a := range saved {
		s.explorer.saved[i] = a
	}
	return true
}

// HierarchyPath returns the curriculum path used for subject-list fetches.
// Branch flags are recomputed first so a stale flag never selects the wrong path.
func (s *Session) HierarchyPath() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recompute()
	class := s.answers.Text(FieldClass)
	if class == "" {
		return nil
	}
	path := []string{class}
	if s.flags[FlagRequiresStream] {
		if stream := s.answers.Text(FieldStream); stream != "" {
			path = append(path, stream)
		}
	}
	return path
}

// Answers returns a copy of the accumulated answers.
func (s *Session) Answers() Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.clone()
}

// Explorer returns the results explorer, nil outside the result view.
func (s *Session) Explorer() *Explorer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explorer
}

func (s *Session) validateStep(i int) map[string]string {
	step := s.flow.Steps[i]
	errs := make(map[string]string)
	for _, f := range step.Fields {
		if msg := f.validate(s.answers[f.Name], s.flags); msg != "" {
			errs[f.Name] = msg
		}
	}
	if step.Check != nil && len(errs) == 0 {
		for field, msg := range step.Check(s.answers) {
			errs[field] = msg
		}
	}
	return errs
}

// Snapshot is a consistent copy of the session used for rendering.
type Snapshot struct {
	FlowName   string
	Step       int
	StepCount  int
	StepDef    Step
	Answers    Answers
	Errors     map[string]string
	Flags      map[string]bool
	Phase      Phase
	Loading    bool
	Status     string
	Alert      string
	Result     *model.RemoteResult
	Generation uint64
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	flags := make(map[string]bool, len(s.flags))
	for k, v := range s.flags {
		flags[k] = v
	}
	return Snapshot{
		FlowName:   s.flow.Name,
		Step:       s.step,
		StepCount:  len(s.flow.Steps),
		StepDef:    s.flow.Steps[s.step],
		Answers:    s.answers.clone(),
		Errors:     errs,
		Flags:      flags,
		Phase:      s.phase,
		Loading:    s.loading,
		Status:     s.status,
		Alert:      s.alert,
		Result:     s.result,
		Generation: s.generation,
	}
}

// ticket tags one request with the generation it was issued under.
type ticket struct {
	generation uint64
	taskID     string
}

func (s *Session) begin(taskID, status string, want Phase) (ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != want {
		return ticket{}, false
	}
	s.loading = true
	s.status = status
	s.alert = ""
	return ticket{generation: s.generation, taskID: taskID}, true
}

// settle runs apply under the lock when t is still current.
func (s *Session) settle(t ticket, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.generation != s.generation {
		return false
	}
	s.loading = false
	s.status = ""
	apply()
	return true
}
