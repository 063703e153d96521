package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/events"
	"github.com/artpar/routekit/core/policy"
	"github.com/artpar/routekit/core/routes"
	"github.com/artpar/routekit/core/service"
	"github.com/artpar/routekit/ports"
)

type none = contract.None

// UserList is the GET /users response.
type UserList struct {
	Users []string `json:"users"`
}

// CreateUserBody is the POST /users request.
type CreateUserBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is a user without credentials.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UserParams addresses one user.
type UserParams struct {
	ID string `json:"id"`
}

// AdminSearch carries the admin flag DELETE /users/:id is guarded by.
type AdminSearch struct {
	Admin string `json:"admin,omitempty"`
}

// SessionBody is the POST /sessions request.
type SessionBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the POST /sessions response.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSearch carries the session token for GET /me.
type TokenSearch struct {
	Token string `json:"token"`
}

// Events published by the users API.
const (
	EventUserCreated = "user.created"
	EventUserDeleted = "user.deleted"
)

// DeletePolicy guards DELETE /users/:id.
const DeletePolicy = `search.admin == "true"`

var (
	userListContract = contract.Object[UserList](contract.Fields{
		"users": contract.ArrayOf(contract.String()),
	})
	userViewContract = contract.Object[UserView](contract.Fields{
		"id":         contract.String().MinLen(1),
		"name":       contract.String(),
		"email":      contract.String().Email(),
		"created_at": contract.String(),
	})
	userParamsContract = contract.Object[UserParams](contract.Fields{
		"id": contract.String().MinLen(1),
	})
)

func toView(u ports.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Routes builds the users API.
func Routes(s *Services, logger zerolog.Logger) ([]endpoint.Route, error) {
	deletePolicy, err := policy.Compile[none, UserParams, AdminSearch](DeletePolicy, policy.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return []endpoint.Route{
		listUsers(s),
		createUser(s),
		getUser(s),
		deleteUser(s, deletePolicy),
		createSession(s),
		me(s),
	}, nil
}

// Table builds the users API route table.
func Table(s *Services, logger zerolog.Logger) (*routes.Table, error) {
	rs, err := Routes(s, logger)
	if err != nil {
		return nil, err
	}
	return routes.NewTable(rs...)
}

func listUsers(s *Services) endpoint.Route {
	return endpoint.New(endpoint.Options[none, none, none, UserList]{
		Method:      endpoint.MethodGet,
		Path:        "/users",
		Description: "List user names",
		Tags:        []string{"users"},
		Response:    userListContract,
		Services:    []service.Provider{s.Logger, s.store},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[UserList], error) {
			store := s.Store.MustFrom(in.Services)
			users, err := store.List(ctx)
			if err != nil {
				return endpoint.Response[UserList]{}, fmt.Errorf("list users: %w", err)
			}
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Name
			}
			return endpoint.OK(UserList{Users: names}), nil
		},
	})
}

func createUser(s *Services) endpoint.Route {
	return endpoint.New(endpoint.Options[CreateUserBody, none, none, UserView]{
		Method:      endpoint.MethodPost,
		Path:        "/users",
		Description: "Create a user",
		Tags:        []string{"users"},
		Body: contract.Object[CreateUserBody](contract.Fields{
			"name":     contract.String().MinLen(1).MaxLen(100),
			"email":    contract.String().Email(),
			"password": contract.String().MinLen(8).MaxLen(72),
		}),
		Response: userViewContract,
		Services: []service.Provider{s.Logger, s.store, s.Hasher, s.IDs, s.Clock, s.Events},
		Handler: func(ctx context.Context, in endpoint.Input[CreateUserBody, none, none]) (endpoint.Response[UserView], error) {
			logger := s.Logger.MustFrom(in.Services)
			store := s.Store.MustFrom(in.Services)

			hash, err := s.Hasher.MustFrom(in.Services).Hash(in.Body.Password)
			if err != nil {
				return endpoint.Response[UserView]{}, fmt.Errorf("hash password: %w", err)
			}
			u := ports.User{
				ID:           s.IDs.MustFrom(in.Services).New(),
				Name:         in.Body.Name,
				Email:        in.Body.Email,
				PasswordHash: hash,
				CreatedAt:    s.Clock.MustFrom(in.Services).Now().UTC(),
			}
			if err := store.Create(ctx, u); err != nil {
				if errors.Is(err, ports.ErrDuplicate) {
					return endpoint.Fail[UserView](http.StatusConflict, "user already exists"), nil
				}
				return endpoint.Response[UserView]{}, fmt.Errorf("create user: %w", err)
			}

			logger.Info().Str("user_id", u.ID).Msg("user created")
			s.Events.MustFrom(in.Services).Publish(ctx, events.Event{
				Name:  EventUserCreated,
				Route: "POST /users",
				Data:  map[string]any{"id": u.ID, "email": u.Email},
				At:    u.CreatedAt,
			})
			return endpoint.Created(toView(u)), nil
		},
	})
}

func getUser(s *Services) endpoint.Route {
	return endpoint.New(endpoint.Options[none, UserParams, none, UserView]{
		Method:      endpoint.MethodGet,
		Path:        "/users/:id",
		Description: "Get a user",
		Tags:        []string{"users"},
		Params:      userParamsContract,
		Response:    userViewContract,
		Services:    []service.Provider{s.Logger, s.store},
		Handler: func(ctx context.Context, in endpoint.Input[none, UserParams, none]) (endpoint.Response[UserView], error) {
			u, err := s.Store.MustFrom(in.Services).Get(ctx, in.Params.ID)
			if errors.Is(err, ports.ErrNotFound) {
				return endpoint.NotFound[UserView]("user not found"), nil
			}
			if err != nil {
				return endpoint.Response[UserView]{}, fmt.Errorf("get user: %w", err)
			}
			return endpoint.OK(toView(u)), nil
		},
	})
}

func deleteUser(s *Services, guard *policy.Policy[none, UserParams, AdminSearch]) endpoint.Route {
	return endpoint.New(endpoint.Options[none, UserParams, AdminSearch, none]{
		Method:      endpoint.MethodDelete,
		Path:        "/users/:id",
		Description: "Delete a user (admin only)",
		Tags:        []string{"users", "admin"},
		Params:      userParamsContract,
		Search: contract.Object[AdminSearch](contract.Fields{
			"admin": contract.Optional(contract.Enum("true", "false")),
		}),
		Services:     []service.Provider{s.Logger, s.store, s.Events},
		IsAuthorized: guard.Authorizer(),
		Handler: func(ctx context.Context, in endpoint.Input[none, UserParams, AdminSearch]) (endpoint.Response[none], error) {
			err := s.Store.MustFrom(in.Services).Delete(ctx, in.Params.ID)
			if errors.Is(err, ports.ErrNotFound) {
				return endpoint.NotFound[none]("user not found"), nil
			}
			if err != nil {
				return endpoint.Response[none]{}, fmt.Errorf("delete user: %w", err)
			}
			logger := s.Logger.MustFrom(in.Services)
			logger.Info().Str("user_id", in.Params.ID).Msg("user deleted")
			s.Events.MustFrom(in.Services).Publish(ctx, events.Event{
				Name:  EventUserDeleted,
				Route: "DELETE /users/:id",
				Data:  map[string]any{"id": in.Params.ID},
			})
			return endpoint.Status(http.StatusNoContent, none{}), nil
		},
	})
}

func createSession(s *Services) endpoint.Route {
	return endpoint.New(endpoint.Options[SessionBody, none, none, Session]{
		Method:      endpoint.MethodPost,
		Path:        "/sessions",
		Description: "Exchange credentials for a session token",
		Tags:        []string{"auth"},
		Body: contract.Object[SessionBody](contract.Fields{
			"email":    contract.String().Email(),
			"password": contract.String().MinLen(1),
		}),
		Response: contract.Object[Session](contract.Fields{
			"token":      contract.String().MinLen(1),
			"expires_at": contract.String(),
		}),
		Services: []service.Provider{s.Logger, s.store, s.Hasher, s.Tokens},
		Handler: func(ctx context.Context, in endpoint.Input[SessionBody, none, none]) (endpoint.Response[Session], error) {
			u, err := s.Store.MustFrom(in.Services).GetByEmail(ctx, in.Body.Email)
			if err != nil && !errors.Is(err, ports.ErrNotFound) {
				return endpoint.Response[Session]{}, fmt.Errorf("find user: %w", err)
			}
			if err != nil || !s.Hasher.MustFrom(in.Services).Compare(u.PasswordHash, in.Body.Password) {
				return endpoint.Fail[Session](http.StatusUnauthorized, "invalid credentials"), nil
			}

			token, expiresAt, err := s.Tokens.MustFrom(in.Services).Issue(u.ID, u.Email)
			if err != nil {
				return endpoint.Response[Session]{}, fmt.Errorf("issue token: %w", err)
			}
			return endpoint.Created(Session{Token: token, ExpiresAt: expiresAt}), nil
		},
	})
}

func me(s *Services) endpoint.Route {
	return endpoint.New(endpoint.Options[none, none, TokenSearch, UserView]{
		Method:      endpoint.MethodGet,
		Path:        "/me",
		Description: "Profile of the session holder",
		Tags:        []string{"auth"},
		Search: contract.Object[TokenSearch](contract.Fields{
			"token": contract.String().MinLen(1),
		}),
		Response: userViewContract,
		Services: []service.Provider{s.Logger, s.store, s.Tokens},
		IsAuthorized: func(ctx context.Context, in endpoint.Input[none, none, TokenSearch]) bool {
			tokens, err := s.Tokens.From(in.Services)
			if err != nil {
				return false
			}
			_, err = tokens.Verify(in.Search.Token)
			return err == nil
		},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, TokenSearch]) (endpoint.Response[UserView], error) {
			claims, err := s.Tokens.MustFrom(in.Services).Verify(in.Search.Token)
			if err != nil {
				return endpoint.Fail[UserView](http.StatusUnauthorized, "invalid token"), nil
			}
			u, err := s.Store.MustFrom(in.Services).Get(ctx, claims.UserID)
			if errors.Is(err, ports.ErrNotFound) {
				return endpoint.NotFound[UserView]("user not found"), nil
			}
			if err != nil {
				return endpoint.Response[UserView]{}, fmt.Errorf("get user: %w", err)
			}
			return endpoint.OK(toView(u)), nil
		},
	})
}
