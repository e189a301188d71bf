// Package admin holds the user directory and the edit form that drive the
// admin interface. Both are independent of how they are rendered: the web
// package serves them to a browser and PromptDialog runs the form on a terminal.
package admin

import (
	"context"

	"github.com/Skryldev/useradmin/client"
	"github.com/Skryldev/useradmin/models"
)

// UserService is the remote user service as seen by the admin views.
type UserService interface {
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	Update(ctx context.Context, id int64, user models.User) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

var _ UserService = (*client.Client)(nil)
