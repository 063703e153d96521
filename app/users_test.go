package app_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/routekit/adapters/auth"
	"github.com/artpar/routekit/adapters/clock"
	"github.com/artpar/routekit/adapters/hasher"
	"github.com/artpar/routekit/adapters/idgen"
	"github.com/artpar/routekit/adapters/memory"
	"github.com/artpar/routekit/app"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/events"
	"github.com/artpar/routekit/core/routes"
	"github.com/artpar/routekit/core/service"
	"github.com/artpar/routekit/ports"
)

type fixture struct {
	table  *routes.Table
	reg    *service.Registry
	store  *memory.UserStore
	clock  *clock.Manual
	opened *int32
	bus    *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	tokens, err := auth.NewTokenService("test-secret", time.Hour, auth.WithClock(c))
	require.NoError(t, err)

	store := memory.NewUserStore()
	var opened int32
	bus := events.NewBus(zerolog.Nop())
	services := app.NewServices(app.Deps{
		Logger: zerolog.Nop(),
		OpenStore: func(context.Context) (ports.UserStore, error) {
			atomic.AddInt32(&opened, 1)
			return store, nil
		},
		Hasher: hasher.Plain{},
		Tokens: tokens,
		IDs:    idgen.NewSequential("user-"),
		Clock:  c,
		Events: bus,
	})

	table, err := app.Table(services, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{table: table, reg: service.NewRegistry(), store: store, clock: c, opened: &opened, bus: bus}
}

func (f *fixture) serve(t *testing.T, route string, req endpoint.Request) endpoint.Reply {
	t.Helper()
	r, ok := f.table.Get(route)
	require.True(t, ok, "route %s not registered", route)
	reply, err := r.Serve(context.Background(), f.reg, req)
	require.NoError(t, err)
	return reply
}

func (f *fixture) createUser(t *testing.T, name, email string) app.UserView {
	t.Helper()
	reply := f.serve(t, "POST /users", endpoint.Request{Body: map[string]any{
		"name":     name,
		"email":    email,
		"password": "correct horse",
	}})
	require.Equal(t, http.StatusCreated, reply.StatusCode)
	return reply.Body.(app.UserView)
}

func TestTable_Routes(t *testing.T) {
	f := newFixture(t)

	var got []string
	for _, r := range f.table.List() {
		got = append(got, r.Route())
	}
	assert.Equal(t, []string{
		"GET /me",
		"POST /sessions",
		"GET /users",
		"POST /users",
		"DELETE /users/:id",
		"GET /users/:id",
	}, got)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)

	reply := f.serve(t, "GET /users", endpoint.Request{})
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.Equal(t, app.UserList{Users: []string{}}, reply.Body)

	f.createUser(t, "a", "a@example.com")
	f.clock.Advance(time.Second)
	f.createUser(t, "b", "b@example.com")

	reply = f.serve(t, "GET /users", endpoint.Request{})
	assert.Equal(t, app.UserList{Users: []string{"a", "b"}}, reply.Body)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	view := f.createUser(t, "Ada", "ada@example.com")
	assert.Equal(t, "user-1", view.ID)
	assert.Equal(t, "Ada", view.Name)
	assert.True(t, view.CreatedAt.Equal(f.clock.Now()))

	stored, err := f.store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "correct horse", string(stored.PasswordHash))
}

func TestCreateUser_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "Ada", "ada@example.com")

	reply := f.serve(t, "POST /users", endpoint.Request{Body: map[string]any{
		"name": "Ada again", "email": "ada@example.com", "password": "correct horse",
	}})
	assert.Equal(t, http.StatusConflict, reply.StatusCode)
	assert.Equal(t, endpoint.ErrorBody{Message: "user already exists"}, reply.Body)
}

func TestCreateUser_InvalidBody(t *testing.T) {
	f := newFixture(t)
	r, _ := f.table.Get("POST /users")

	_, err := r.Serve(context.Background(), f.reg, endpoint.Request{Body: map[string]any{
		"name": "", "email": "nope", "password": "short",
	}})
	var inputErr *endpoint.InputError
	require.ErrorAs(t, err, &inputErr)

	var paths []string
	for _, issue := range inputErr.Issues() {
		paths = append(paths, issue.PathString())
	}
	assert.Equal(t, []string{"email", "name", "password"}, paths)
	assert.Zero(t, atomic.LoadInt32(f.opened), "store opened for invalid input")
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	created := f.createUser(t, "Ada", "ada@example.com")

	reply := f.serve(t, "GET /users/:id", endpoint.Request{Params: map[string]any{"id": created.ID}})
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.Equal(t, created.Email, reply.Body.(app.UserView).Email)

	reply = f.serve(t, "GET /users/:id", endpoint.Request{Params: map[string]any{"id": "nobody"}})
	assert.Equal(t, http.StatusNotFound, reply.StatusCode)
	assert.Equal(t, endpoint.ErrorBody{Message: "user not found"}, reply.Body)
}

func TestDeleteUser_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	created := f.createUser(t, "Ada", "ada@example.com")
	params := map[string]any{"id": created.ID}

	reply := f.serve(t, "DELETE /users/:id", endpoint.Request{Params: params, Search: map[string]any{}})
	assert.Equal(t, endpoint.Reply{StatusCode: http.StatusForbidden, Body: endpoint.ErrorBody{Message: "Forbidden"}}, reply)

	reply = f.serve(t, "DELETE /users/:id", endpoint.Request{Params: params, Search: map[string]any{"admin": "true"}})
	assert.Equal(t, http.StatusNoContent, reply.StatusCode)

	_, err := f.store.Get(context.Background(), created.ID)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestSessionsAndMe(t *testing.T) {
	f := newFixture(t)
	created := f.createUser(t, "Ada", "ada@example.com")

	reply := f.serve(t, "POST /sessions", endpoint.Request{Body: map[string]any{
		"email": "ada@example.com", "password": "wrong",
	}})
	assert.Equal(t, http.StatusUnauthorized, reply.StatusCode)

	reply = f.serve(t, "POST /sessions", endpoint.Request{Body: map[string]any{
		"email": "ada@example.com", "password": "correct horse",
	}})
	require.Equal(t, http.StatusCreated, reply.StatusCode)
	session := reply.Body.(app.Session)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)))

	reply = f.serve(t, "GET /me", endpoint.Request{Search: map[string]any{"token": session.Token}})
	require.Equal(t, http.StatusOK, reply.StatusCode)
	assert.Equal(t, created.ID, reply.Body.(app.UserView).ID)

	reply = f.serve(t, "GET /me", endpoint.Request{Search: map[string]any{"token": "forged"}})
	assert.Equal(t, http.StatusForbidden, reply.StatusCode)

	f.clock.Advance(2 * time.Hour)
	reply = f.serve(t, "GET /me", endpoint.Request{Search: map[string]any{"token": session.Token}})
	assert.Equal(t, http.StatusForbidden, reply.StatusCode)
}

func TestSessions_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	reply := f.serve(t, "POST /sessions", endpoint.Request{Body: map[string]any{
		"email": "ghost@example.com", "password": "whatever",
	}})
	assert.Equal(t, http.StatusUnauthorized, reply.StatusCode)
	assert.Equal(t, endpoint.ErrorBody{Message: "invalid credentials"}, reply.Body)
}

func TestStoreOpenedOnce(t *testing.T) {
	f := newFixture(t)

	f.serve(t, "GET /users", endpoint.Request{})
	f.serve(t, "GET /users", endpoint.Request{})
	f.createUser(t, "Ada", "ada@example.com")

	assert.Equal(t, int32(1), atomic.LoadInt32(f.opened))
}

func TestStoreOpenFailure(t *testing.T) {
	services := app.NewServices(app.Deps{
		Logger: zerolog.Nop(),
		OpenStore: func(context.Context) (ports.UserStore, error) {
			return nil, errors.New("disk full")
		},
	})
	table, err := app.Table(services, zerolog.Nop())
	require.NoError(t, err)

	r, _ := table.Get("GET /users")
	_, err = r.Serve(context.Background(), service.NewRegistry(), endpoint.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "internal", endpoint.FailureKind(err))
}

func TestUserEvents(t *testing.T) {
	f := newFixture(t)

	var got []events.Event
	f.bus.Subscribe("user.*", func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	u := f.createUser(t, "Ada", "ada@example.com")
	reply := f.serve(t, "DELETE /users/:id", endpoint.Request{
		Params: map[string]any{"id": u.ID},
		Search: map[string]any{"admin": "true"},
	})
	require.Equal(t, http.StatusNoContent, reply.StatusCode)

	require.Len(t, got, 2)
	assert.Equal(t, app.EventUserCreated, got[0].Name)
	assert.Equal(t, u.ID, got[0].Data["id"])
	assert.Equal(t, f.clock.Now(), got[0].At)
	assert.Equal(t, app.EventUserDeleted, got[1].Name)
	assert.Equal(t, "DELETE /users/:id", got[1].Route)
}
