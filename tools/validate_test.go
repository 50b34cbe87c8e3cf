package tools_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/terminus/tools"
)

func validationRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	err := r.Register(tools.Spec{
		Name:    "sample",
		Handler: echoHandler,
		Schema: tools.NewSchema().
			String("path", "target path", true).
			Integer("depth", "depth", false).Default("depth", 2).
			Boolean("hidden", "include hidden", false).
			StringArray("files", "files", false).
			Enum("mode", "mode", []string{"fast", "full"}, false).
			Build(),
	})
	require.NoError(t, err)
	return r
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		check   func(t *testing.T, args map[string]any)
		wantErr error
	}{
		{
			name: "valid with default applied",
			raw:  `{"path":"."}`,
			check: func(t *testing.T, args map[string]any) {
				assert.Equal(t, ".", args["path"])
				assert.EqualValues(t, 2, args["depth"])
			},
		},
		{
			name: "string integer coerced",
			raw:  `{"path":".","depth":"3"}`,
			check: func(t *testing.T, args map[string]any) {
				assert.Equal(t, float64(3), args["depth"])
			},
		},
		{
			name: "string boolean coerced",
			raw:  `{"path":".","hidden":"true"}`,
			check: func(t *testing.T, args map[string]any) {
				assert.Equal(t, true, args["hidden"])
			},
		},
		{
			name: "number coerced to string",
			raw:  `{"path":42}`,
			check: func(t *testing.T, args map[string]any) {
				assert.Equal(t, "42", args["path"])
			},
		},
		{
			name: "bare string wrapped into array",
			raw:  `{"path":".","files":"a.go"}`,
			check: func(t *testing.T, args map[string]any) {
				assert.Equal(t, []any{"a.go"}, args["files"])
			},
		},
		{name: "missing required", raw: `{}`, wantErr: tools.ErrInvalidArguments},
		{name: "empty arguments", raw: ``, wantErr: tools.ErrInvalidArguments},
		{name: "malformed JSON", raw: `{"path":`, wantErr: tools.ErrInvalidArguments},
		{name: "not an object", raw: `["."]`, wantErr: tools.ErrInvalidArguments},
		{name: "non-integral integer", raw: `{"path":".","depth":1.5}`, wantErr: tools.ErrInvalidArguments},
		{name: "uncoercible boolean", raw: `{"path":".","hidden":"perhaps"}`, wantErr: tools.ErrInvalidArguments},
		{name: "enum violation", raw: `{"path":".","mode":"slow"}`, wantErr: tools.ErrInvalidArguments},
	}

	r := validationRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := r.Validate("sample", tt.raw)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "Validate() error = %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, args)
		})
	}
}

func TestRegistry_Validate_UnknownTool(t *testing.T) {
	r := validationRegistry(t)
	_, err := r.Validate("missing", `{}`)
	assert.ErrorIs(t, err, tools.ErrNotFound)
}
