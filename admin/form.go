package admin

import (
	"context"
	"errors"
	"sync"

	"github.com/Skryldev/useradmin/client"
	"github.com/Skryldev/useradmin/models"
)

// Messages shown by the form.
const (
	MsgInvalid      = "Name and valid email are required"
	MsgCreateFailed = "Failed to create user"
	MsgUpdateFailed = "Failed to update user"
)

var (
	// ErrInvalid is returned by Save when local validation fails.
	ErrInvalid = errors.New("admin: invalid user")
	// ErrSaveInProgress is returned by Save while an earlier save is in flight.
	ErrSaveInProgress = errors.New("admin: save already in progress")
	// ErrClosed is returned by Save after the form was closed.
	ErrClosed = errors.New("admin: form is closed")
)

// Mode selects whether a form creates a new user or edits an existing one.
type Mode struct {
	existing *models.User
}

// Create is the mode for a new user.
func Create() Mode { return Mode{} }

// Edit is the mode for changing u.
func Edit(u models.User) Mode { return Mode{existing: &u} }

// ModeFor picks Edit when data carries an identifier and Create otherwise.
func ModeFor(data models.User) Mode {
	if data.HasID() {
		return Edit(data)
	}
	return Create()
}

// IsEdit reports whether m edits an existing user.
func (m Mode) IsEdit() bool { return m.existing != nil }

// Existing returns the record being edited.
func (m Mode) Existing() (models.User, bool) {
	if m.existing == nil {
		return models.User{}, false
	}
	return *m.existing, true
}

// State is the lifecycle position of a Form.
type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool { return models.IsValidEmail(s) }

// Form is the edit form for one dialog invocation. It owns a private working
// copy of the record; the directory list is never touched.
type Form struct {
	svc  UserService
	mode Mode

	mu        sync.Mutex
	draft     models.User
	errMsg    string
	state     State
	confirmed bool
	result    *models.User
}

// NewForm opens a form in mode. Edit mode starts from a clone of the
// existing record, create mode from an empty template.
func NewForm(svc UserService, mode Mode) *Form {
	f := &Form{svc: svc, mode: mode}
	if u, ok := mode.Existing(); ok {
		f.draft = u
	}
	return f
}

// Mode returns the mode the form was opened with.
func (f *Form) Mode() Mode { return f.mode }

// Draft returns a copy of the working copy.
func (f *Form) Draft() models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *Form) SetName(name string) {
	f.mu.Lock()
	f.draft.Name = name
	f.mu.Unlock()
}

func (f *Form) SetEmail(email string) {
	f.mu.Lock()
	f.draft.Email = email
	f.mu.Unlock()
}

// Error returns the message to display, empty when there is none.
func (f *Form) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Confirmed reports whether the form closed after a successful save.
func (f *Form) Confirmed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmed
}

// Result returns the saved record, nil unless the form closed confirmed.
func (f *Form) Result() *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return nil
	}
	u := *f.result
	return &u
}

// Cancel closes the form without saving.
func (f *Form) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateClosed {
		return
	}
	f.state = StateClosed
	f.confirmed = false
}

// Save validates the working copy and writes it to the service: an update
// when the draft has an identifier, a create otherwise. On success the form
// closes confirmed and the stored record is returned. On failure the form
// stays open with Error set.
func (f *Form) Save(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return nil, ErrSaveInProgress
	case StateClosed:
		f.mu.Unlock()
		return nil, ErrClosed
	}
	draft := f.draft
	if draft.Name == "" || draft.Email == "" || !IsValidEmail(draft.Email) {
		f.errMsg = MsgInvalid
		f.mu.Unlock()
		return nil, ErrInvalid
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	var (
		saved    *models.User
		err      error
		fallback string
	)
	if draft.HasID() {
		saved, err = f.svc.Update(ctx, draft.ID, draft)
		fallback = MsgUpdateFailed
	} else {
		saved, err = f.svc.Create(ctx, models.CreateUserParams{Name: draft.Name, Email: draft.Email})
		fallback = MsgCreateFailed
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateEditing
		if msg, ok := client.ErrorMessage(err); ok {
			f.errMsg = msg
		} else {
			f.errMsg = fallback
		}
		return nil, err
	}

	if saved == nil {
		saved = &draft
	}
	f.errMsg = ""
	f.state = StateClosed
	f.confirmed = true
	f.result = saved
	out := *saved
	return &out, nil
}
