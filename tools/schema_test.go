package tools_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/terminus/tools"
)

func TestSchemaBuilder_PropertyOrder(t *testing.T) {
	schema := tools.NewSchema().
		String("zeta", "last alphabetically", true).
		String("alpha", "first alphabetically", false).
		Build()

	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	s := string(data)
	if strings.Index(s, `"zeta"`) > strings.Index(s, `"alpha"`) {
		t.Errorf("properties not rendered in insertion order: %s", s)
	}
}

func TestSchemaBuilder_RequiredNotDuplicated(t *testing.T) {
	schema := tools.NewSchema().
		String("path", "first", true).
		String("path", "again", true).
		Build()

	if len(schema.Required) != 1 {
		t.Errorf("Required = %v, want one entry", schema.Required)
	}
	if schema.Properties["path"].Description != "again" {
		t.Errorf("Description = %q, want %q", schema.Properties["path"].Description, "again")
	}
}

func TestSchemaBuilder_DefaultIgnoresUnknown(t *testing.T) {
	schema := tools.NewSchema().Default("missing", 1).Build()
	if len(schema.Properties) != 0 {
		t.Errorf("Default on unknown property created %d properties", len(schema.Properties))
	}
}

func TestCall_Accessors(t *testing.T) {
	call := tools.Call{Args: map[string]any{
		"s":   "text",
		"n":   float64(7),
		"b":   true,
		"arr": []any{"a", "b", 3},
	}}

	if got := call.StringArg("s"); got != "text" {
		t.Errorf("StringArg(s) = %q", got)
	}
	if got := call.StringArg("absent"); got != "" {
		t.Errorf("StringArg(absent) = %q", got)
	}
	if got := call.IntArg("n", 0); got != 7 {
		t.Errorf("IntArg(n) = %d", got)
	}
	if got := call.IntArg("absent", 9); got != 9 {
		t.Errorf("IntArg(absent) = %d", got)
	}
	if got := call.BoolArg("b", false); !got {
		t.Error("BoolArg(b) = false")
	}
	if got := call.StringsArg("arr"); len(got) != 2 {
		t.Errorf("StringsArg(arr) = %v", got)
	}
}
