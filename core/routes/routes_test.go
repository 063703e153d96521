package routes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/routes"
)

type none = contract.None

func route(method, path string) endpoint.Route {
	return endpoint.New(endpoint.Options[none, none, none, none]{
		Method: method,
		Path:   path,
		Handler: func(context.Context, endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
			return endpoint.OK(none{}), nil
		},
	})
}

func TestTable_DuplicateRoute(t *testing.T) {
	table, err := routes.NewTable(route("GET", "/users"), route("POST", "/users"))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	err = table.Add(route("get", "/users"))
	if !errors.Is(err, routes.ErrDuplicateRoute) {
		t.Fatalf("Add() error = %v, want ErrDuplicateRoute", err)
	}
	if want := "duplicate route found: GET /users"; err.Error() != want {
		t.Errorf("Add() error = %q, want %q", err.Error(), want)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestTable_IdentityIsDeclaredRoute(t *testing.T) {
	table, err := routes.NewTable(
		route("GET", "/users"),
		route("GET", "/Users"),
		route("GET", "/users/"),
	)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	for _, id := range []string{"GET /users", "GET /Users", "GET /users/"} {
		r, ok := table.Get(id)
		if !ok {
			t.Errorf("Get(%q) not found", id)
			continue
		}
		if r.Route() != id {
			t.Errorf("Get(%q).Route() = %q", id, r.Route())
		}
	}

	err = table.Add(route("GET", "/Users"))
	if want := "duplicate route found: GET /Users"; err == nil || err.Error() != want {
		t.Errorf("Add() error = %v, want %q", err, want)
	}
}

func TestTable_AddIsAtomic(t *testing.T) {
	table, _ := routes.NewTable()
	err := table.Add(route("GET", "/a"), route("GET", "/b"), route("GET", "/a"))
	if !errors.Is(err, routes.ErrDuplicateRoute) {
		t.Fatalf("Add() error = %v, want ErrDuplicateRoute", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed Add", table.Len())
	}
}

func TestTable_GetAndList(t *testing.T) {
	table := (&routes.Table{}).MustAdd(
		route("POST", "/users"),
		route("GET", "/users/:id"),
		route("GET", "/users"),
		route("DELETE", "/users/:id"),
	)

	if _, ok := table.Get("GET /users/:id"); !ok {
		t.Error("Get(GET /users/:id) not found")
	}
	if _, ok := table.Get("PATCH /users"); ok {
		t.Error("Get(PATCH /users) found, want missing")
	}
	if _, ok := table.Get("garbage"); ok {
		t.Error("Get(garbage) found, want missing")
	}

	want := []string{"GET /users", "POST /users", "DELETE /users/:id", "GET /users/:id"}
	got := table.List()
	if len(got) != len(want) {
		t.Fatalf("List() len = %d, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Route() != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, r.Route(), want[i])
		}
	}
}

func TestMustAdd_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustAdd() did not panic on duplicate")
		}
	}()
	(&routes.Table{}).MustAdd(route("GET", "/x"), route("GET", "/x"))
}

func TestRoutify(t *testing.T) {
	tests := map[string]string{
		"users":     "/users",
		"/Users/":   "/users",
		"/":         "/",
		"":          "/",
		"/a/b//":    "/a/b",
		" /health ": "/health",
	}
	for in, want := range tests {
		if got := routes.Routify(in); got != want {
			t.Errorf("Routify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeploymentName(t *testing.T) {
	tests := []struct {
		route   string
		want    string
		wantErr bool
	}{
		{route: "GET /users/:id", want: "get_users_id"},
		{route: "POST /users", want: "post_users"},
		{route: "get /user-profiles/:profileId/", want: "get_user_profiles_profileid"},
		{route: "DELETE /", want: "delete"},
		{route: "/users", wantErr: true},
		{route: "GET users", wantErr: true},
	}
	for _, tt := range tests {
		got, err := routes.DeploymentName(tt.route)
		if tt.wantErr {
			if !errors.Is(err, routes.ErrInvalidRoute) {
				t.Errorf("DeploymentName(%q) error = %v, want ErrInvalidRoute", tt.route, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("DeploymentName(%q) = %q, %v; want %q", tt.route, got, err, tt.want)
		}
	}
}
