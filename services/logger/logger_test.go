package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guigasprogramador/oneeduca/core"
)

func TestLogger_prepare(t *testing.T) {
	l := NewNopLogger()
	boom := errors.New("boom")
	ana := core.Identity{ID: "ana", Name: "Ana", Email: "ana@test.br"}

	tests := []struct {
		name       string
		args       []interface{}
		wantKVs    []interface{}
		wantErr    error
		wantExtras map[string]interface{}
		wantPerson *core.Identity
	}{
		{
			name:       "no args",
			wantKVs:    []interface{}{},
			wantExtras: map[string]interface{}{},
		},
		{
			name:       "pairs",
			args:       []interface{}{"course", "go", "progress", 75},
			wantKVs:    []interface{}{"course", "go", "progress", 75},
			wantExtras: map[string]interface{}{"course": "go", "progress": "75"},
		},
		{
			name:       "lone error",
			args:       []interface{}{boom, "course", "go"},
			wantKVs:    []interface{}{"error", boom, "course", "go"},
			wantErr:    boom,
			wantExtras: map[string]interface{}{"course": "go"},
		},
		{
			name:       "keyed error",
			args:       []interface{}{"error", boom},
			wantKVs:    []interface{}{"error", boom},
			wantErr:    boom,
			wantExtras: map[string]interface{}{"error": "boom"},
		},
		{
			name:       "identity",
			args:       []interface{}{ana, "course", "go"},
			wantKVs:    []interface{}{"identity", "ana", "course", "go"},
			wantExtras: map[string]interface{}{"course": "go"},
			wantPerson: &ana,
		},
		{
			name:       "dangling value",
			args:       []interface{}{"course", "go", "oops"},
			wantKVs:    []interface{}{"course", "go", "extra", "oops"},
			wantExtras: map[string]interface{}{"course": "go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kvs, err, extras, person := l.prepare(tt.args)
			assert.Equal(t, tt.wantKVs, kvs)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantExtras, extras)
			assert.Equal(t, tt.wantPerson, person)
		})
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(&core.Config{Env: "test", Debug: true}, "TEST")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if l.rollbar {
		t.Error("rollbar enabled without a token")
	}
	l.With("k", "v").Info("hello", "n", 1)
	l.Warn("careful", errors.New("boom"))
	l.Sync()
}
