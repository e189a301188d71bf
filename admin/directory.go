package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Skryldev/useradmin/client"
	"github.com/Skryldev/useradmin/models"
)

// Columns are the fixed columns of the directory table.
var Columns = []string{"name", "email", "actions"}

// Dialog presents a form and blocks until it is dismissed. It returns the
// saved record, or nil when the operator cancelled.
type Dialog interface {
	Open(ctx context.Context, form *Form) (*models.User, error)
}

// Directory is the user list view. Its list is always the verbatim result of
// the last successful fetch: every write is followed by a full reload and
// nothing is patched locally.
type Directory struct {
	svc    UserService
	dialog Dialog
	logger *slog.Logger

	mu        sync.RWMutex
	users     []models.User
	activated bool
	// gen numbers fetches as they start; committed is the newest one whose
	// result is on screen. An older fetch finishing late is dropped.
	gen       uint64
	committed uint64
}

// NewDirectory returns an empty directory. dialog may be nil when the caller
// drives forms itself and reports closure through DialogClosed.
func NewDirectory(svc UserService, dialog Dialog, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{svc: svc, dialog: dialog, logger: logger, users: []models.User{}}
}

// Activate fetches the list and replaces the current one. On failure the
// current list is kept and the error is returned. When fetches overlap, the
// one started last wins regardless of which finishes first.
func (d *Directory) Activate(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	users, err := d.svc.List(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "admin: list users failed", "error", err)
		return fmt.Errorf("admin: list users: %w", err)
	}
	snapshot := make([]models.User, len(users))
	copy(snapshot, users)

	d.mu.Lock()
	if gen < d.committed {
		d.mu.Unlock()
		d.logger.DebugContext(ctx, "admin: stale list dropped", "generation", gen)
		return nil
	}
	d.users = snapshot
	d.activated = true
	d.committed = gen
	d.mu.Unlock()

	d.logger.DebugContext(ctx, "admin: directory loaded", "count", len(snapshot))
	return nil
}

// Activated reports whether at least one fetch has succeeded.
func (d *Directory) Activated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activated
}

// Users returns a copy of the current list.
func (d *Directory) Users() []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.User, len(d.users))
	copy(out, d.users)
	return out
}

// Lookup returns a copy of the row with id.
func (d *Directory) Lookup(id int64) (models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// OpenCreateDialog opens an empty form and reloads the list if it was saved.
func (d *Directory) OpenCreateDialog(ctx context.Context) error {
	return d.openDialog(ctx, Create())
}

// OpenEditDialog opens a form over a copy of u and reloads the list if it was saved.
func (d *Directory) OpenEditDialog(ctx context.Context, u models.User) error {
	return d.openDialog(ctx, Edit(u))
}

func (d *Directory) openDialog(ctx context.Context, mode Mode) error {
	if d.dialog == nil {
		return fmt.Errorf("admin: directory has no dialog")
	}
	saved, err := d.dialog.Open(ctx, NewForm(d.svc, mode))
	if err != nil {
		return fmt.Errorf("admin: dialog: %w", err)
	}
	return d.DialogClosed(ctx, saved)
}

// DialogClosed handles the closing signal of a form: a saved record triggers
// a full reload, nil (cancel) leaves the list untouched.
func (d *Directory) DialogClosed(ctx context.Context, saved *models.User) error {
	if saved == nil {
		return nil
	}
	return d.Activate(ctx)
}

// DeleteUser deletes id and then reloads the list. A not-found answer means
// the row was already gone and still triggers the reload; any other failure
// leaves the list untouched.
func (d *Directory) DeleteUser(ctx context.Context, id int64) error {
	err := d.svc.Delete(ctx, id)
	switch {
	case err == nil:
	case client.IsNotFound(err):
		// Someone else removed it first; the row on screen is stale.
		d.logger.InfoContext(ctx, "admin: user already deleted", "id", id)
	default:
		d.logger.WarnContext(ctx, "admin: delete user failed", "id", id, "error", err)
		return fmt.Errorf("admin: delete user %d: %w", id, err)
	}
	return d.Activate(ctx)
}
