package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Skryldev/useradmin/api"
	"github.com/Skryldev/useradmin/client"
	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/migrations"
	"github.com/Skryldev/useradmin/models"
	"github.com/Skryldev/useradmin/repo"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

var _ = Describe("Handler", func() {
	var (
		database *db.DB
		users    repo.UserRepository
		router   *mux.Router
		logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, r)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorOf := func(rec *httptest.ResponseRecorder) string {
		var payload models.ErrorResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &payload)).To(Succeed())
		return payload.Error
	}

	seed := func(name, email string) *models.User {
		u, err := users.Insert(context.Background(), models.CreateUserParams{Name: name, Email: email})
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	BeforeEach(func() {
		var err error
		database, err = db.Open(db.Config{
			DSN:        filepath.Join(GinkgoT().TempDir(), "users.db"),
			DriverName: "sqlite3",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Up(database, logger)).To(Succeed())

		dialect, err := repo.DialectFor(database.DriverName())
		Expect(err).NotTo(HaveOccurred())
		users = repo.NewUserRepo(database, dialect)

		router = mux.NewRouter()
		api.NewHandler(users, database, logger).Register(router)
	})

	AfterEach(func() {
		Expect(database.Close()).To(Succeed())
	})

	Describe("GET /users", func() {
		It("returns an empty array when there are no users", func() {
			rec := do(http.MethodGet, "/users", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("returns every user", func() {
			seed("test", "test@example.com")
			rec := do(http.MethodGet, "/users", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"name":"test"`))

			var got []models.User
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got).To(HaveLen(1))
		})
	})

	Describe("GET /users/{id}", func() {
		It("returns the user", func() {
			u := seed("test", "test@example.com")
			rec := do(http.MethodGet, "/users/"+itoa(u.ID), "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"email":"test@example.com"`))
		})

		It("returns 404 for an unknown id", func() {
			rec := do(http.MethodGet, "/users/99", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorOf(rec)).To(Equal(api.MsgNotFound))
		})

		It("returns 400 for a malformed id", func() {
			rec := do(http.MethodGet, "/users/abc", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal(api.MsgInvalidID))
		})
	})

	Describe("POST /users", func() {
		It("creates a user", func() {
			rec := do(http.MethodPost, "/users", `{"name":"test","email":"test@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var u models.User
			Expect(json.Unmarshal(rec.Body.Bytes(), &u)).To(Succeed())
			Expect(u.ID).NotTo(BeZero())
			Expect(u.Name).To(Equal("test"))

			all, err := users.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("rejects a duplicate name with 409", func() {
			seed("test", "test@example.com")
			rec := do(http.MethodPost, "/users", `{"name":"test","email":"test2@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(errorOf(rec)).To(Equal(api.MsgDuplicateName))
		})

		It("rejects malformed JSON", func() {
			rec := do(http.MethodPost, "/users", `{"name":`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal(api.MsgInvalidInput))
		})

		It("rejects an invalid email", func() {
			rec := do(http.MethodPost, "/users", `{"name":"test","email":"invalid-email"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorOf(rec)).To(Equal(api.MsgInvalidUser))
		})
	})

	Describe("PUT /users/{id}", func() {
		It("updates a user", func() {
			u := seed("test", "test@example.com")
			rec := do(http.MethodPut, "/users/"+itoa(u.ID), `{"name":"updated","email":"test@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			got, err := users.GetByID(context.Background(), u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("updated"))
		})

		It("takes the id from the path", func() {
			u := seed("test", "test@example.com")
			rec := do(http.MethodPut, "/users/"+itoa(u.ID), `{"id":999,"name":"updated","email":"test@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got models.User
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got.ID).To(Equal(u.ID))
		})

		It("returns 409 when renaming onto a taken name", func() {
			seed("alice", "a@example.com")
			bob := seed("bob", "b@example.com")
			rec := do(http.MethodPut, "/users/"+itoa(bob.ID), `{"name":"alice","email":"b@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(errorOf(rec)).To(Equal(api.MsgDuplicateName))
		})

		It("returns 404 for an unknown id", func() {
			rec := do(http.MethodPut, "/users/42", `{"name":"x","email":"x@example.com"}`)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /users/{id}", func() {
		It("deletes a user", func() {
			u := seed("test", "test@example.com")
			rec := do(http.MethodDelete, "/users/"+itoa(u.ID), "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			all, err := users.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns 204 for an id that is already gone", func() {
			u := seed("test", "test@example.com")
			Expect(do(http.MethodDelete, "/users/"+itoa(u.ID), "").Code).To(Equal(http.StatusNoContent))

			rec := do(http.MethodDelete, "/users/"+itoa(u.ID), "")
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Body.Len()).To(BeZero())
		})
	})

	Describe("GET /healthz", func() {
		It("reports ok while the database answers", func() {
			rec := do(http.MethodGet, "/healthz", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("reports 503 when the database is down", func() {
			router = mux.NewRouter()
			api.NewHandler(users, downPinger{}, logger).Register(router)
			rec := do(http.MethodGet, "/healthz", "")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("with the HTTP client", func() {
		var c *client.Client

		BeforeEach(func() {
			srv := httptest.NewServer(router)
			DeferCleanup(srv.Close)
			var err error
			c, err = client.New(srv.URL)
			Expect(err).NotTo(HaveOccurred())
		})

		It("round-trips create, update, list and delete", func() {
			ctx := context.Background()
			created, err := c.Create(ctx, models.CreateUserParams{Name: "test", Email: "test@example.com"})
			Expect(err).NotTo(HaveOccurred())

			updated, err := c.Update(ctx, created.ID, models.User{ID: created.ID, Name: "renamed", Email: created.Email})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("renamed"))

			list, err := c.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(ConsistOf(*updated))

			Expect(c.Delete(ctx, created.ID)).To(Succeed())
			list, err = c.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("surfaces the server message on conflict", func() {
			ctx := context.Background()
			_, err := c.Create(ctx, models.CreateUserParams{Name: "test", Email: "test@example.com"})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Create(ctx, models.CreateUserParams{Name: "test", Email: "other@example.com"})
			msg, ok := client.ErrorMessage(err)
			Expect(ok).To(BeTrue())
			Expect(msg).To(Equal(api.MsgDuplicateName))
		})
	})
})

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
