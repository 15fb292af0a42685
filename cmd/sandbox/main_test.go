package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `
projects:
  - brand_id: qcorpeu
    id: ZN_AjrGvOvcxpMpjwJ
    name: Sandbox
    intercepts:
      - id: SI_bQTjH716jE5OOCq
        repeat_window: 1h
        creative:
          headline: "Got a minute?"
          survey_url: "https://survey.test/SI_bQTjH716jE5OOCq"
        rules:
          - dimension: test
            include: true
            values: [sdkTest]
`

func runCheck(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"check", "--standalone", path}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCheck_Standalone(t *testing.T) {
	out, err := runCheck(t)
	require.NoError(t, err)
	assert.Contains(t, out, "[SI_bQTjH716jE5OOCq] Got a minute?")
	assert.Contains(t, out, "✓ Initialization passed successfully")
	assert.Contains(t, out, "✓ Intercept evaluation passed - Intercept ID: SI_bQTjH716jE5OOCq")
}

func TestCheck_UnknownProject(t *testing.T) {
	out, err := runCheck(t, "--project", "ZN_missing")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Initialization failed")
}

func TestCheck_UnknownIntercept(t *testing.T) {
	out, err := runCheck(t, "--intercept", "SI_missing")
	require.NoError(t, err)
	assert.Contains(t, out, "does not qualify")
}

func TestCheck_StandaloneUsesRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	t.Setenv("APP_REDIS_ADDR", mr.Addr())

	out, err := runCheck(t)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Intercept evaluation passed")

	keys := mr.Keys()
	require.Len(t, keys, 1, "impression recorded in the repeat window store")
	assert.Contains(t, keys[0], "intercept:seen:")
	assert.Contains(t, keys[0], ":SI_bQTjH716jE5OOCq")
}

func TestCheck_StandaloneRedisUnreachable(t *testing.T) {
	t.Setenv("APP_REDIS_ADDR", "127.0.0.1:1")
	_, err := runCheck(t)
	assert.Error(t, err)
}

func TestOpenLog(t *testing.T) {
	t.Run("empty path logs to stderr", func(t *testing.T) {
		w, closeLog, err := openLog("")
		require.NoError(t, err)
		assert.Nil(t, w)
		closeLog()
	})

	t.Run("close releases the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sandbox.log")
		w, closeLog, err := openLog(path)
		require.NoError(t, err)
		_, err = w.Write([]byte("line\n"))
		require.NoError(t, err)

		closeLog()
		_, err = w.Write([]byte("late\n"))
		assert.ErrorIs(t, err, os.ErrClosed)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "line\n", string(data))
	})
}
