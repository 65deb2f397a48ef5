package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

type developerQuery struct {
	Skills []string `json:"skills"`
}

type developerMatch struct {
	DeveloperID string `json:"developerId"`
}

func TestNewRegistry_Validation(t *testing.T) {
	noop := func(context.Context, models.Payload) (any, error) { return nil, nil }

	tests := []struct {
		name     string
		bindings []Binding
		wantErr  error
	}{
		{
			name:     "valid bindings",
			bindings: []Binding{BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, noop)},
		},
		{
			name:     "unknown agent",
			bindings: []Binding{BindFunc("ghost", models.ActionFindDeveloper, noop)},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "empty action",
			bindings: []Binding{BindFunc(models.AgentDevMatch, "", noop)},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "nil handler",
			bindings: []Binding{BindFunc(models.AgentDevMatch, models.ActionFindDeveloper, nil)},
			wantErr:  ErrInvalidBinding,
		},
		{
			name:     "nil typed handler",
			bindings: []Binding{Bind[developerQuery, developerMatch](models.AgentDevMatch, models.ActionFindDeveloper, nil)},
			wantErr:  ErrInvalidBinding,
		},
		{
			name: "duplicate pair",
			bindings: []Binding{
				BindFunc(models.AgentFraudWatch, models.ActionCheckCode, noop),
				BindFunc(models.AgentFraudWatch, models.ActionCheckCode, noop),
			},
			wantErr: ErrDuplicateBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.bindings...)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBind_DecodesPayload(t *testing.T) {
	var got developerQuery
	reg, err := NewRegistry(Bind(models.AgentDevMatch, models.ActionFindDeveloper,
		func(_ context.Context, q developerQuery) (developerMatch, error) {
			got = q
			return developerMatch{DeveloperID: "dev-7"}, nil
		}))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	h, ok := reg.Lookup(models.AgentDevMatch, models.ActionFindDeveloper)
	if !ok {
		t.Fatal("handler not found")
	}

	payload, err := models.NewPayload(models.ActionFindDeveloper, developerQuery{Skills: []string{"go", "sql"}})
	if err != nil {
		t.Fatal(err)
	}
	result, err := h(context.Background(), payload)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if diff := cmp.Diff(developerQuery{Skills: []string{"go", "sql"}}, got); diff != "" {
		t.Errorf("decoded input mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(developerMatch{DeveloperID: "dev-7"}, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestBind_DecodeErrorFailsHandler(t *testing.T) {
	reg, err := NewRegistry(Bind(models.AgentDevMatch, models.ActionFindDeveloper,
		func(context.Context, developerQuery) (developerMatch, error) {
			t.Error("handler should not run on undecodable payload")
			return developerMatch{}, nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	h, _ := reg.Lookup(models.AgentDevMatch, models.ActionFindDeveloper)
	_, err = h(context.Background(), models.Payload{Action: models.ActionFindDeveloper, Data: []byte(`{"skills": 5}`)})
	if err == nil {
		t.Error("expected decode error")
	}
}

func TestRegistry_LookupMissing(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Lookup(models.AgentScheduler, models.ActionCreateTask); ok {
		t.Error("empty registry should not resolve any route")
	}

	var nilReg *Registry
	if _, ok := nilReg.Lookup(models.AgentScheduler, models.ActionCreateTask); ok {
		t.Error("nil registry should not resolve any route")
	}
}

func TestRegistry_Routes(t *testing.T) {
	noop := func(context.Context, models.Payload) (any, error) { return nil, nil }
	reg, err := NewRegistry(
		BindFunc(models.AgentScheduler, models.ActionUpdateTaskProgress, noop),
		BindFunc(models.AgentCodeCheck, models.ActionReviewCode, noop),
		BindFunc(models.AgentScheduler, models.ActionCreateTask, noop),
	)
	if err != nil {
		t.Fatal(err)
	}

	want := []Route{
		{models.AgentCodeCheck, models.ActionReviewCode},
		{models.AgentScheduler, models.ActionCreateTask},
		{models.AgentScheduler, models.ActionUpdateTaskProgress},
	}
	if diff := cmp.Diff(want, reg.Routes()); diff != "" {
		t.Errorf("Routes mismatch (-want +got):\n%s", diff)
	}
	if reg.Len() != 3 {
		t.Errorf("Len = %d, want 3", reg.Len())
	}
}
