package cli

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	original := version
	SetVersion(v)
	t.Cleanup(func() { version = original })
}

func TestVersionCmd_Full(t *testing.T) {
	withVersion(t, "1.4.0")

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vetrina version 1.4.0")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCmd_Short(t *testing.T) {
	withVersion(t, "1.4.0")

	out, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", strings.TrimSpace(out))
}

func TestVersionCmd_DevByDefault(t *testing.T) {
	withVersion(t, "dev")

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vetrina version dev")
}

func TestVcsRevision_Shape(t *testing.T) {
	rev := vcsRevision()
	if rev == "" {
		t.Skip("binary built without VCS stamping")
	}
	assert.LessOrEqual(t, len(strings.TrimSuffix(rev, "+dirty")), 12)
}
