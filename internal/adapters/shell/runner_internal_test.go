package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sysEnv   []string
		cmdEnv   []string
		expected []string
	}{
		{
			name:     "System Only (Allowed)",
			sysEnv:   []string{"USER=test", "PATH=/bin", "HOME=/home/test"},
			expected: []string{"HOME=/home/test", "PATH=/bin", "USER=test"},
		},
		{
			name:     "System Only (Filtered)",
			sysEnv:   []string{"USER=test", "SSH_AUTH_SOCK=/tmp/ssh", "SECRET=key"},
			expected: []string{"USER=test"},
		},
		{
			name:     "Command Adds",
			sysEnv:   []string{"PATH=/bin"},
			cmdEnv:   []string{"KILN_OUTPUT=/w/out"},
			expected: []string{"KILN_OUTPUT=/w/out", "PATH=/bin"},
		},
		{
			name:     "Command Overrides",
			sysEnv:   []string{"PATH=/bin", "USER=test"},
			cmdEnv:   []string{"PATH=/custom/bin", "MALFORMED"},
			expected: []string{"PATH=/custom/bin", "USER=test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, resolveEnvironment(tt.sysEnv, tt.cmdEnv))
		})
	}
}

func TestLookPath(t *testing.T) {
	t.Parallel()

	_, err := lookPath("sh", nil)
	assert.Error(t, err, "no PATH")

	p, err := lookPath("sh", []string{"PATH=/nonexistent:/bin:/usr/bin"})
	assert.NoError(t, err)
	assert.NotEmpty(t, p)
}
