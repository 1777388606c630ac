package auth

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

type Step string

const (
	StepEmailEntry    Step = "email-entry"
	StepOTPEntry      Step = "otp-entry"
	StepAuthenticated Step = "authenticated"
)

const DefaultReturnPath = "/"

// State is a snapshot of a sign-in flow.
type State struct {
	Step     Step     `json:"step"`
	Email    string   `json:"email,omitempty"`
	ReturnTo string   `json:"return_to,omitempty"`
	Session  *Session `json:"session,omitempty"`
}

// Flow is the two-step sign-in state machine:
//
//	email-entry -> otp-entry -> authenticated
//	otp-entry   -> email-entry (Back)
//	any         -> email-entry (SignOut)
//
// Only one operation may run at a time; a concurrent call returns ErrFlowBusy.
type Flow struct {
	provider Provider
	busy     atomic.Bool

	mu    sync.RWMutex
	state State
}

func NewFlow(provider Provider, returnTo string) *Flow {
	return &Flow{
		provider: provider,
		state: State{
			Step:     StepEmailEntry,
			ReturnTo: SafeReturnPath(returnTo),
		},
	}
}

// ResumeFlow continues a flow from a saved state.
func ResumeFlow(provider Provider, st State) *Flow {
	st.ReturnTo = SafeReturnPath(st.ReturnTo)
	switch st.Step {
	case StepOTPEntry:
		if st.Email == "" {
			st.Step = StepEmailEntry
		}
	case StepAuthenticated:
		if st.Session == nil {
			st.Step = StepEmailEntry
		}
	default:
		st.Step = StepEmailEntry
	}
	return &Flow{provider: provider, state: st}
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *Flow) acquire() error {
	if !f.busy.CompareAndSwap(false, true) {
		return ErrFlowBusy
	}
	return nil
}

func (f *Flow) release() {
	f.busy.Store(false)
}

// RequestCode asks the provider to email a code. The flow moves to otp-entry
// only when the provider accepts the request.
func (f *Flow) RequestCode(ctx context.Context, email string) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	if f.State().Step != StepEmailEntry {
		return ErrInvalidTransition
	}

	email = normalizeEmail(email)
	if err := f.provider.SendOTP(ctx, email); err != nil {
		return err
	}

	f.mu.Lock()
	f.state.Step = StepOTPEntry
	f.state.Email = email
	f.mu.Unlock()
	return nil
}

// VerifyCode checks code against the email the flow was started with and
// returns the path to continue to. A rejected code leaves the flow in otp-entry.
func (f *Flow) VerifyCode(ctx context.Context, code string) (string, error) {
	if err := f.acquire(); err != nil {
		return "", err
	}
	defer f.release()

	st := f.State()
	if st.Step != StepOTPEntry {
		return "", ErrInvalidTransition
	}

	session, err := f.provider.VerifyOTP(ctx, st.Email, code)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.state.Step = StepAuthenticated
	f.state.Session = session
	f.mu.Unlock()

	return st.ReturnTo, nil
}

// Back discards the pending code and returns to email entry. The email is kept
// so it can be corrected.
func (f *Flow) Back() error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Step != StepOTPEntry {
		return ErrInvalidTransition
	}
	f.state.Step = StepEmailEntry
	return nil
}

// SignOut ends the session, if any, and resets the flow. Signing out without a
// session is a no-op. The flow is reset even when revoking the session fails;
// the revoke error is still returned.
func (f *Flow) SignOut(ctx context.Context) error {
	if err := f.acquire(); err != nil {
		return err
	}
	defer f.release()

	var err error
	if st := f.State(); st.Session != nil {
		err = f.provider.SignOut(ctx, st.Session.Token)
	}

	f.mu.Lock()
	f.state = State{Step: StepEmailEntry, ReturnTo: DefaultReturnPath}
	f.mu.Unlock()
	return err
}

// SafeReturnPath accepts only same-site absolute paths and falls back to "/".
func SafeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return DefaultReturnPath
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DefaultReturnPath
	}
	return p
}
