package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-a", ":8080", "-x", "1"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "equals form",
			args:    []string{"-s=secret", "-x=1"},
			allowed: []string{"-s"},
			want:    []string{"-s=secret"},
		},
		{
			name:    "order preserved",
			args:    []string{"-d", "dsn", "-a", ":1", "-r", "redis:6379"},
			allowed: []string{"-a", "-d", "-r"},
			want:    []string{"-d", "dsn", "-a", ":1", "-r", "redis:6379"},
		},
		{
			name:    "unknown flags and positionals dropped",
			args:    []string{"serve", "-v", "--y=2"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next flag is not consumed as value",
			args:    []string{"-c", "-a", ":1"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "nil input",
			args:    nil,
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "conf.json", ConfigFileFlag([]string{"-a", ":1", "-c", "conf.json"}))
	assert.Equal(t, "other.json", ConfigFileFlag([]string{"-config=other.json"}))
	assert.Equal(t, "", ConfigFileFlag([]string{"-a", ":1"}))
}
