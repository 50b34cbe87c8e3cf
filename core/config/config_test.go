package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/terminus/core/config"
)

func TestDefaultAgentConfig(t *testing.T) {
	cfg := config.DefaultAgentConfig()

	assert.Equal(t, config.DefaultProvider, cfg.Provider)
	assert.Equal(t, config.DefaultModel, cfg.Model)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
}

func TestAgentConfig_Merge(t *testing.T) {
	tests := []struct {
		name         string
		source       config.AgentConfig
		wantProvider string
		wantModel    string
	}{
		{
			name:         "empty source preserves defaults",
			wantProvider: config.DefaultProvider,
			wantModel:    config.DefaultModel,
		},
		{
			name:         "explicit provider and model",
			source:       config.AgentConfig{Provider: "openai", Model: "gpt-4o"},
			wantProvider: "openai",
			wantModel:    "gpt-4o",
		},
		{
			name:         "prefixed model sets provider",
			source:       config.AgentConfig{Model: "openai:gpt-4o-mini"},
			wantProvider: "openai",
			wantModel:    "gpt-4o-mini",
		},
		{
			name:         "explicit provider wins over prefix",
			source:       config.AgentConfig{Provider: "gemini", Model: "google-gla:gemini-2.0-flash"},
			wantProvider: "gemini",
			wantModel:    "gemini-2.0-flash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultAgentConfig()
			cfg.Merge(&tt.source)

			assert.Equal(t, tt.wantProvider, cfg.Provider)
			assert.Equal(t, tt.wantModel, cfg.Model)
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `"30s"`, want: 30 * time.Second},
		{in: `"2m"`, want: 2 * time.Minute},
		{in: `45`, want: 45 * time.Second},
		{in: `null`, want: 0},
		{in: `"soon"`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d config.Duration
			err := d.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

type sample struct {
	Name    string          `json:"name"`
	Timeout config.Duration `json:"timeout"`
	Nested  struct {
		Items []string `json:"items"`
	} `json:"nested"`
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		ext  string
		data string
	}{
		{ext: ".json", data: `{"name":"terminus","timeout":"5s","nested":{"items":["a","b"]}}`},
		{ext: ".toml", data: "name = \"terminus\"\ntimeout = \"5s\"\n[nested]\nitems = [\"a\", \"b\"]\n"},
		{ext: ".yaml", data: "name: terminus\ntimeout: 5s\nnested:\n  items: [a, b]\n"},
		{ext: ".yml", data: "name: terminus\ntimeout: 5s\nnested:\n  items:\n    - a\n    - b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			var got sample
			require.NoError(t, config.Decode(tt.ext, []byte(tt.data), &got))

			assert.Equal(t, "terminus", got.Name)
			assert.Equal(t, 5*time.Second, got.Timeout.Std())
			assert.Equal(t, []string{"a", "b"}, got.Nested.Items)
		})
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	var got sample
	err := config.Decode(".ini", []byte("name=x"), &got)
	if !errors.Is(err, config.ErrUnsupportedFormat) {
		t.Errorf("Decode() error = %v, want %v", err, config.ErrUnsupportedFormat)
	}
}

func TestSplitModel(t *testing.T) {
	tests := []struct {
		in           string
		wantProvider string
		wantModel    string
	}{
		{in: "gpt-4o", wantModel: "gpt-4o"},
		{in: "openai:gpt-4o", wantProvider: "openai", wantModel: "gpt-4o"},
		{in: ":gpt-4o", wantModel: ":gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			provider, model := config.SplitModel(tt.in)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}
