package admin_test

import (
	"context"
	"sync"

	"github.com/Skryldev/useradmin/admin"
	"github.com/Skryldev/useradmin/models"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	mu sync.Mutex

	users   []models.User
	listErr error

	createErr error
	updateErr error
	deleteErr error
	nextID    int64

	// block, when set, is received from before Create/Update returns.
	block chan struct{}

	listCalls   int
	createCalls []models.CreateUserParams
	updateCalls []models.User
	deleteCalls []int64
}

var _ admin.UserService = (*fakeService)(nil)

func (f *fakeService) List(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.User, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	u := models.User{ID: f.nextID, Name: params.Name, Email: params.Email}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeService) Update(ctx context.Context, id int64, user models.User) (*models.User, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, user)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	user.ID = id
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i] = user
		}
	}
	return &user, nil
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeService) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeService) calls() (list, create, update, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, len(f.createCalls), len(f.updateCalls), len(f.deleteCalls)
}

// scriptedDialog fills the form through fill and then saves or cancels it.
type scriptedDialog struct {
	fill   func(*admin.Form)
	cancel bool
	forms  []*admin.Form
}

func (d *scriptedDialog) Open(ctx context.Context, form *admin.Form) (*models.User, error) {
	d.forms = append(d.forms, form)
	if d.fill != nil {
		d.fill(form)
	}
	if d.cancel {
		form.Cancel()
		return nil, nil
	}
	saved, err := form.Save(ctx)
	if err != nil {
		form.Cancel()
		return nil, nil
	}
	return saved, nil
}
