package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldanca/awsbulk/processor"
)

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "awsbulk.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, processor.DefaultConfig, c.Processor)
	assert.Equal(t, "table", c.Output)
	assert.Equal(t, "console", c.Log.Format)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_DefaultFileInHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, DefaultFile), []byte("output: json\n"), 0o600))

	c, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, "json", c.Output)
	assert.Equal(t, filepath.Join(home, DefaultFile), c.Source)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	require.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	p := writeFile(t, `
aws:
  region: eu-west-1
  endpoint_url: http://localhost:4566
processor:
  batch_size: 10
  max_concurrency: 8
  max_retries: 5
  enable_retry: true
  base_delay: 50ms
  max_delay: 2s
output: csv
metrics_namespace: Bulk
`)

	c, err := load(p, env(map[string]string{
		"AWSBULK_REGION":      "us-east-2",
		"AWSBULK_MAX_RETRIES": "1",
		"AWSBULK_VERBOSE":     "true",
		"AWSBULK_MAX_DELAY":   "3s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "us-east-2", c.AWS.Region)
	assert.Equal(t, "http://localhost:4566", c.AWS.EndpointURL)
	assert.Equal(t, 10, c.Processor.BatchSize)
	assert.Equal(t, 8, c.Processor.MaxConcurrency)
	assert.Equal(t, 1, c.Processor.MaxRetries)
	assert.True(t, c.Processor.Verbose)
	assert.Equal(t, 50*time.Millisecond, c.Processor.BaseDelay)
	assert.Equal(t, 3*time.Second, c.Processor.MaxDelay)
	assert.Equal(t, "csv", c.Output)
	assert.Equal(t, "Bulk", c.MetricsNamespace)
	assert.Equal(t, p, c.Source)
}

func TestLoad_PartialProcessorSectionKeepsDefaults(t *testing.T) {
	p := writeFile(t, "processor:\n  batch_size: 5\n")

	c, err := load(p, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Processor.BatchSize)
	assert.Equal(t, processor.DefaultConfig.MaxConcurrency, c.Processor.MaxConcurrency)
	assert.True(t, c.Processor.EnableRetry)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]struct {
		file string
		env  map[string]string
	}{
		"unknown field":   {file: "nope: 1\n"},
		"bad yaml":        {file: "output: [\n"},
		"bad output":      {file: "output: xml\n"},
		"zero batch size": {file: "processor:\n  batch_size: 0\n"},
		"bad endpoint":    {file: "aws:\n  endpoint_url: not a url\n"},
		"half static key": {file: "aws:\n  access_key_id: AKIA\n"},
		"bad env int":     {env: map[string]string{"AWSBULK_BATCH_SIZE": "ten"}},
		"bad env bool":    {env: map[string]string{"AWSBULK_ENABLE_RETRY": "maybe"}},
		"bad env dur":     {env: map[string]string{"AWSBULK_BASE_DELAY": "soon"}},
		"bad log format":  {env: map[string]string{"AWSBULK_LOG_FORMAT": "xml"}},
		"max below base":  {env: map[string]string{"AWSBULK_BASE_DELAY": "2s", "AWSBULK_MAX_DELAY": "1s"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			path := ""
			if tc.file != "" {
				path = writeFile(t, tc.file)
			} else {
				t.Setenv("HOME", t.TempDir())
			}
			_, err := load(path, env(tc.env))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	c, err := load(writeFile(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, "table", c.Output)
}
