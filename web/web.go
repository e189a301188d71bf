// Package web serves the admin interface to a browser. The directory page
// and the form modal are rendered server-side from the admin package's view
// models; every write goes through admin.Form and ends in a redirect to the
// directory.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Skryldev/useradmin/admin"
	"github.com/Skryldev/useradmin/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// page is the data handed to the layout template.
type page struct {
	Columns []string
	Users   []models.User
	Form    *formView
}

type formView struct {
	Title  string
	Action string
	Name   string
	Email  string
	Error  string
}

// Handler renders the directory and the form modal.
type Handler struct {
	svc    admin.UserService
	dir    *admin.Directory
	logger *slog.Logger
}

// NewHandler returns a Handler over svc with a fresh directory. The first
// request for the directory page activates it.
func NewHandler(svc admin.UserService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		dir:    admin.NewDirectory(svc, nil, logger),
		logger: logger,
	}
}

// Directory returns the directory served by h.
func (h *Handler) Directory() *admin.Directory { return h.dir }

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/users/new", h.newForm).Methods(http.MethodGet)
	r.HandleFunc("/users/new", h.create).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/edit", h.editForm).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}/edit", h.update).Methods(http.MethodPost)
	r.HandleFunc("/users/{id:[0-9]+}/delete", h.delete).Methods(http.MethodPost)
}

// index reloads on every visit. A failed fetch keeps the rows from the last
// good one.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	_ = h.dir.Activate(r.Context())
	h.render(w, http.StatusOK, nil)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	// The error is already logged by the directory; the list stays as it was.
	_ = h.dir.Activate(r.Context())
	redirectHome(w, r)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.ensureActivated(r)
	h.render(w, http.StatusOK, viewOf(admin.NewForm(h.svc, admin.Create())))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, admin.NewForm(h.svc, admin.Create()))
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	u, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, viewOf(admin.NewForm(h.svc, admin.Edit(u))))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	u, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.save(w, r, admin.NewForm(h.svc, admin.Edit(u)))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	// Failures are logged by the directory and not shown to the operator.
	_ = h.dir.DeleteUser(r.Context(), id)
	redirectHome(w, r)
}

// save applies the posted fields to form and submits it. A rejected form is
// rendered again with its message; a saved one closes the dialog and returns
// the operator to the refreshed directory.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, form *admin.Form) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	form.SetName(r.PostForm.Get("name"))
	form.SetEmail(r.PostForm.Get("email"))

	saved, err := form.Save(r.Context())
	if err != nil {
		if !errors.Is(err, admin.ErrInvalid) {
			h.logger.WarnContext(r.Context(), "web: save user failed", "error", err)
		}
		h.ensureActivated(r)
		h.render(w, http.StatusUnprocessableEntity, viewOf(form))
		return
	}

	_ = h.dir.DialogClosed(r.Context(), saved)
	redirectHome(w, r)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	h.ensureActivated(r)
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return models.User{}, false
	}
	u, ok := h.dir.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return models.User{}, false
	}
	return u, true
}

func (h *Handler) ensureActivated(r *http.Request) {
	if !h.dir.Activated() {
		_ = h.dir.Activate(r.Context())
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, form *formView) {
	data := page{Columns: admin.Columns, Users: h.dir.Users(), Form: form}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("web: render", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func viewOf(form *admin.Form) *formView {
	draft := form.Draft()
	v := &formView{
		Title:  "New user",
		Action: "/users/new",
		Name:   draft.Name,
		Email:  draft.Email,
		Error:  form.Error(),
	}
	if form.Mode().IsEdit() {
		v.Title = "Edit user"
		v.Action = fmt.Sprintf("/users/%d/edit", draft.ID)
	}
	return v
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
