package endpoint_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/service"
)

type none = contract.None

type userList struct {
	Users []string `json:"users"`
}

type aBody struct {
	A string `json:"a"`
}

func TestExecute_ListUsers(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, userList]{
		Method: "get",
		Path:   "/users",
		Response: contract.Object[userList](contract.Fields{
			"users": contract.ArrayOf(contract.String()),
		}),
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[userList], error) {
			return endpoint.OK(userList{Users: []string{"a", "b"}}), nil
		},
	})

	resp, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !reflect.DeepEqual(resp.Body.Users, []string{"a", "b"}) {
		t.Errorf("Body.Users = %v, want [a b]", resp.Body.Users)
	}
	if ep.Method() != "GET" || ep.Route() != "GET /users" {
		t.Errorf("Route() = %q, want GET /users", ep.Route())
	}
}

func TestExecute_InvalidBodyNeverReachesHandler(t *testing.T) {
	var calls int32
	ep := endpoint.New(endpoint.Options[aBody, none, none, none]{
		Method: endpoint.MethodPost,
		Path:   "/things",
		Body:   contract.Object[aBody](contract.Fields{"a": contract.String()}),
		Handler: func(ctx context.Context, in endpoint.Input[aBody, none, none]) (endpoint.Response[none], error) {
			atomic.AddInt32(&calls, 1)
			return endpoint.OK(none{}), nil
		},
	})

	_, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{Body: map[string]any{}})
	if !errors.Is(err, endpoint.ErrInvalidInput) {
		t.Fatalf("Execute() error = %v, want ErrInvalidInput", err)
	}
	var inputErr *endpoint.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("Execute() error type = %T, want *InputError", err)
	}
	issues := inputErr.Issues()
	if len(issues) != 1 || !reflect.DeepEqual(issues[0].Path, []any{"a"}) {
		t.Errorf("Issues() = %v, want one issue at path [a]", issues)
	}
	if inputErr.Failures[0].Source != endpoint.SourceBody {
		t.Errorf("Source = %q, want body", inputErr.Failures[0].Source)
	}
	if calls != 0 {
		t.Errorf("handler called %d times, want 0", calls)
	}
}

func TestExecute_AggregatesInputParts(t *testing.T) {
	ep := endpoint.New(endpoint.Options[aBody, aBody, aBody, none]{
		Method: endpoint.MethodPut,
		Path:   "/things/:a",
		Params: contract.Object[aBody](contract.Fields{"a": contract.String()}),
		Body:   contract.Object[aBody](contract.Fields{"a": contract.String()}),
		Search: contract.Object[aBody](contract.Fields{"a": contract.String()}),
		Handler: func(ctx context.Context, in endpoint.Input[aBody, aBody, aBody]) (endpoint.Response[none], error) {
			return endpoint.OK(none{}), nil
		},
	})

	_, err := ep.Execute(context.Background(), nil, endpoint.Request{
		Params: map[string]any{},
		Body:   map[string]any{"a": "ok"},
		Search: "nope",
	})
	var inputErr *endpoint.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("Execute() error = %v, want *InputError", err)
	}
	if len(inputErr.Failures) != 2 {
		t.Fatalf("Failures = %v, want 2", inputErr.Failures)
	}
	if inputErr.Failures[0].Source != endpoint.SourceParams || inputErr.Failures[1].Source != endpoint.SourceSearch {
		t.Errorf("Failures sources = %q, %q; want params, search", inputErr.Failures[0].Source, inputErr.Failures[1].Source)
	}
}

func TestExecute_ForbiddenIsExact(t *testing.T) {
	var calls int32
	ep := endpoint.New(endpoint.Options[none, none, none, string]{
		Method:       endpoint.MethodGet,
		Path:         "/secret",
		IsAuthorized: func(context.Context, endpoint.Input[none, none, none]) bool { return false },
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[string], error) {
			atomic.AddInt32(&calls, 1)
			return endpoint.OK("secret"), nil
		},
	})

	resp, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := endpoint.Response[string]{StatusCode: 403, Message: "Forbidden"}
	if resp != want {
		t.Errorf("Execute() = %+v, want %+v", resp, want)
	}
	if calls != 0 {
		t.Errorf("handler called %d times, want 0", calls)
	}
	reply := resp.Reply()
	if reply.Body != (endpoint.ErrorBody{Message: "Forbidden"}) {
		t.Errorf("Reply().Body = %#v, want {Forbidden}", reply.Body)
	}
}

func TestExecute_AuthorizerSeesValidatedInputAndServices(t *testing.T) {
	greeting := service.Value("greeting", "hello")
	ep := endpoint.New(endpoint.Options[aBody, none, none, string]{
		Method:   endpoint.MethodPost,
		Path:     "/greet",
		Body:     contract.Object[aBody](contract.Fields{"a": contract.String()}),
		Services: []service.Provider{greeting},
		IsAuthorized: func(ctx context.Context, in endpoint.Input[aBody, none, none]) bool {
			g, err := greeting.From(in.Services)
			return err == nil && g == "hello" && in.Body.A == "ok"
		},
		Handler: func(ctx context.Context, in endpoint.Input[aBody, none, none]) (endpoint.Response[string], error) {
			return endpoint.OK(greeting.MustFrom(in.Services) + " " + in.Body.A), nil
		},
	})

	resp, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{Body: map[string]any{"a": "ok"}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 200 || resp.Body != "hello ok" {
		t.Errorf("Execute() = %+v, want 200 hello ok", resp)
	}
}

func TestExecute_IdentityContractsPassThrough(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, map[string]any]{
		Method: endpoint.MethodGet,
		Path:   "/echo",
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[map[string]any], error) {
			return endpoint.OK(map[string]any{"x": 1, "extra": "kept"}), nil
		},
	})

	resp, err := ep.Execute(context.Background(), nil, endpoint.Request{Body: "ignored", Search: 7})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := map[string]any{"x": 1, "extra": "kept"}
	if !reflect.DeepEqual(resp.Body, want) {
		t.Errorf("Body = %v, want %v", resp.Body, want)
	}
}

func TestExecute_HandlerInvokedExactlyOnce(t *testing.T) {
	var calls int32
	ep := endpoint.New(endpoint.Options[none, none, none, int]{
		Method: endpoint.MethodGet,
		Path:   "/count",
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[int], error) {
			return endpoint.OK(int(atomic.AddInt32(&calls, 1))), nil
		},
	})

	resp, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 1 || resp.Body != 1 {
		t.Errorf("calls = %d, body = %d; want 1, 1", calls, resp.Body)
	}
}

func TestExecute_ErrorResponsePassesThrough(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, userList]{
		Method: endpoint.MethodGet,
		Path:   "/users/:id",
		Response: contract.Object[userList](contract.Fields{
			"users": contract.ArrayOf(contract.String()),
		}),
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[userList], error) {
			return endpoint.NotFound[userList]("user not found"), nil
		},
	})

	resp, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.StatusCode != 404 || resp.Message != "user not found" {
		t.Errorf("Execute() = %+v, want 404 user not found", resp)
	}
}

func TestExecute_OutputContractViolation(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, map[string]any]{
		Method:   endpoint.MethodGet,
		Path:     "/bad",
		Response: contract.Fields{"users": contract.ArrayOf(contract.String())},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[map[string]any], error) {
			return endpoint.OK(map[string]any{"users": "not a list"}), nil
		},
	})

	_, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	if !errors.Is(err, endpoint.ErrOutputContract) {
		t.Fatalf("Execute() error = %v, want ErrOutputContract", err)
	}
	if got := endpoint.FailureKind(err); got != "output_contract" {
		t.Errorf("FailureKind() = %q, want output_contract", got)
	}
}

func TestExecute_ResponseContractSubstitutesValue(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, map[string]any]{
		Method:   endpoint.MethodGet,
		Path:     "/trim",
		Response: contract.Fields{"id": contract.String()},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[map[string]any], error) {
			return endpoint.OK(map[string]any{"id": "1", "password": "secret"}), nil
		},
	})

	resp, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, leaked := resp.Body["password"]; leaked {
		t.Errorf("Body = %v, want undeclared keys dropped", resp.Body)
	}
}

func TestExecute_InvalidStatusCode(t *testing.T) {
	ep := endpoint.New(endpoint.Options[none, none, none, none]{
		Method: endpoint.MethodGet,
		Path:   "/redirect",
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
			return endpoint.Status(302, none{}), nil
		},
	})

	_, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	var outErr *endpoint.OutputContractError
	if !errors.As(err, &outErr) {
		t.Fatalf("Execute() error = %v, want *OutputContractError", err)
	}
	if outErr.StatusCode != 302 {
		t.Errorf("StatusCode = %d, want 302", outErr.StatusCode)
	}
}

func TestExecute_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	ep := endpoint.New(endpoint.Options[none, none, none, none]{
		Method: endpoint.MethodDelete,
		Path:   "/boom",
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
			return endpoint.Response[none]{}, boom
		},
	})

	_, err := ep.Execute(context.Background(), nil, endpoint.Request{})
	if !errors.Is(err, boom) || !errors.Is(err, endpoint.ErrHandler) {
		t.Fatalf("Execute() error = %v, want boom wrapped as ErrHandler", err)
	}
	if got := endpoint.FailureKind(err); got != "handler" {
		t.Errorf("FailureKind() = %q, want handler", got)
	}
}

func TestExecute_HandlerErrorWrappingPipelineErrors(t *testing.T) {
	nested := &endpoint.InputError{
		Route:    "GET /inner",
		Failures: []endpoint.SourceIssues{{Source: endpoint.SourceBody, Issues: contract.Issues{{Message: "required"}}}},
	}
	tests := []struct {
		name  string
		cause error
	}{
		{"input error", nested},
		{"service not found", fmt.Errorf("lookup: %w", service.ErrServiceNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := endpoint.New(endpoint.Options[none, none, none, none]{
				Method: endpoint.MethodGet,
				Path:   "/outer",
				Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
					return endpoint.Response[none]{}, tt.cause
				},
			})

			_, err := ep.Execute(context.Background(), nil, endpoint.Request{})
			if got := endpoint.FailureKind(err); got != "handler" {
				t.Errorf("FailureKind() = %q, want handler", got)
			}
			if _, ok := endpoint.AsInputError(err); ok {
				t.Error("AsInputError() matched an error returned by the handler")
			}
		})
	}
}

func TestAsInputError(t *testing.T) {
	ep := endpoint.New(endpoint.Options[map[string]any, none, none, none]{
		Method: endpoint.MethodPost,
		Path:   "/things",
		Body:   contract.Fields{"name": contract.String()},
		Handler: func(ctx context.Context, in endpoint.Input[map[string]any, none, none]) (endpoint.Response[none], error) {
			return endpoint.OK(none{}), nil
		},
	})

	_, err := ep.Execute(context.Background(), nil, endpoint.Request{Body: map[string]any{}})
	inputErr, ok := endpoint.AsInputError(err)
	if !ok {
		t.Fatalf("AsInputError(%v) = false, want true", err)
	}
	if len(inputErr.Failures) != 1 || inputErr.Failures[0].Source != endpoint.SourceBody {
		t.Errorf("Failures = %+v, want one body failure", inputErr.Failures)
	}
	if _, ok := endpoint.AsInputError(errors.New("other")); ok {
		t.Error("AsInputError matched a plain error")
	}
}

func TestExecute_ServiceNotFound(t *testing.T) {
	dep := service.Define("repo", func(ctx context.Context, r *service.Registry) (int, error) {
		if _, err := r.Get(ctx, "config"); err != nil {
			return 0, err
		}
		return 1, nil
	})

	var calls int32
	ep := endpoint.New(endpoint.Options[none, none, none, none]{
		Method:   endpoint.MethodGet,
		Path:     "/repo",
		Services: []service.Provider{dep},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
			atomic.AddInt32(&calls, 1)
			return endpoint.OK(none{}), nil
		},
	})

	_, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{})
	if !errors.Is(err, service.ErrServiceNotFound) {
		t.Fatalf("Execute() error = %v, want ErrServiceNotFound", err)
	}
	if got := endpoint.FailureKind(err); got != "service_not_found" {
		t.Errorf("FailureKind() = %q, want service_not_found", got)
	}
	if calls != 0 {
		t.Errorf("handler called %d times, want 0", calls)
	}
}

func TestExecute_ServicesResolvedInDeclarationOrder(t *testing.T) {
	var order []string
	mk := func(name string) service.Provider {
		return service.Define(name, func(ctx context.Context, r *service.Registry) (string, error) {
			order = append(order, name)
			return name, nil
		})
	}
	ep := endpoint.New(endpoint.Options[none, none, none, none]{
		Method:   endpoint.MethodGet,
		Path:     "/ordered",
		Services: []service.Provider{mk("c"), mk("a"), mk("b")},
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
			if len(in.Services) != 3 {
				t.Errorf("Services = %v, want 3 entries", in.Services)
			}
			return endpoint.OK(none{}), nil
		},
	})

	if _, err := ep.Execute(context.Background(), service.NewRegistry(), endpoint.Request{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(order, []string{"c", "a", "b"}) {
		t.Errorf("resolution order = %v, want [c a b]", order)
	}
}

func TestServe_ErasesBody(t *testing.T) {
	var route endpoint.Route = endpoint.New(endpoint.Options[none, none, none, userList]{
		Method: endpoint.MethodGet,
		Path:   "/users",
		Handler: func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[userList], error) {
			return endpoint.OK(userList{Users: []string{"a"}}), nil
		},
	})

	reply, err := route.Serve(context.Background(), nil, endpoint.Request{})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if reply.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", reply.StatusCode)
	}
	if body, ok := reply.Body.(userList); !ok || len(body.Users) != 1 {
		t.Errorf("Body = %#v, want userList with one user", reply.Body)
	}
}

func TestParseAccessors(t *testing.T) {
	ep := endpoint.New(endpoint.Options[aBody, none, none, none]{
		Method: endpoint.MethodPost,
		Path:   "/parse",
		Body:   contract.Object[aBody](contract.Fields{"a": contract.String().MinLen(2)}),
		Handler: func(ctx context.Context, in endpoint.Input[aBody, none, none]) (endpoint.Response[none], error) {
			return endpoint.OK(none{}), nil
		},
	})
	ctx := context.Background()

	body, err := ep.ParseBody(ctx, map[string]any{"a": "ok"})
	if err != nil || body.A != "ok" {
		t.Errorf("ParseBody() = %+v, %v; want {ok}, nil", body, err)
	}
	if _, err := ep.ParseBody(ctx, map[string]any{"a": "x"}); !errors.Is(err, endpoint.ErrInvalidInput) {
		t.Errorf("ParseBody() error = %v, want ErrInvalidInput", err)
	}
	if _, err := ep.ParseParams(ctx, "anything"); err != nil {
		t.Errorf("ParseParams() error = %v, want nil for absent contract", err)
	}
}

func TestBuild_RejectsInvalidOptions(t *testing.T) {
	handler := func(ctx context.Context, in endpoint.Input[none, none, none]) (endpoint.Response[none], error) {
		return endpoint.OK(none{}), nil
	}
	tests := []struct {
		name string
		opts endpoint.Options[none, none, none, none]
	}{
		{"bad method", endpoint.Options[none, none, none, none]{Method: "TRACE", Path: "/x", Handler: handler}},
		{"relative path", endpoint.Options[none, none, none, none]{Method: "GET", Path: "x", Handler: handler}},
		{"no handler", endpoint.Options[none, none, none, none]{Method: "GET", Path: "/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := endpoint.Build(tt.opts); err == nil {
				t.Error("Build() error = nil, want error")
			}
		})
	}
}
