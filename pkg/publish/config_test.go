package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfigsFromYAML(t *testing.T, yaml string) ([]PublisherConfig, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publishers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return LoadConfigs(path)
}

func TestLoadConfigs(t *testing.T) {
	cfgs, err := loadConfigsFromYAML(t, `
publishers:
  - id: ops-webhook
    type: http
    http:
      url: https://hooks.example.com/runs
      headers:
        X-Token: abc
  - id: run-events
    type: queue
    enabled: false
    queue:
      provider: aws-sqs
      sqs:
        queue_url: https://sqs.eu-west-1.amazonaws.com/123/runs
        region: eu-west-1
`)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.Equal(t, "ops-webhook", cfgs[0].ID)
	assert.Equal(t, TypeHTTP, cfgs[0].Type)
	assert.Equal(t, "POST", cfgs[0].HTTP.Method)
	assert.Equal(t, httpDefaultTimeoutSeconds, cfgs[0].HTTP.TimeoutSeconds)

	assert.Equal(t, QueueProviderAWSSQS, cfgs[1].Queue.Provider)

	enabled := Enabled(cfgs)
	require.Len(t, enabled, 1)
	assert.Equal(t, "ops-webhook", enabled[0].ID)
}

func TestLoadConfigsExpandsEnv(t *testing.T) {
	t.Setenv("HOOK_URL", "https://hooks.example.com/x")
	cfgs, err := loadConfigsFromYAML(t, `
publishers:
  - id: hook
    type: http
    http:
      url: ${HOOK_URL}
`)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/x", cfgs[0].HTTP.URL)
}

func TestLoadConfigsRejectsInvalidEntries(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"missing id": {
			yaml: "publishers:\n  - type: http\n    http: {url: https://x}\n",
			want: "id is required",
		},
		"missing type": {
			yaml: "publishers:\n  - id: a\n",
			want: "type is required",
		},
		"unknown type": {
			yaml: "publishers:\n  - id: a\n    type: smtp\n",
			want: "not supported",
		},
		"unknown queue provider": {
			yaml: "publishers:\n  - id: a\n    type: queue\n    queue: {provider: kafka}\n",
			want: "not supported",
		},
		"http without url": {
			yaml: "publishers:\n  - id: a\n    type: http\n    http: {method: POST}\n",
			want: "http.url is required",
		},
		"sqs without region": {
			yaml: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: aws-sqs\n      sqs: {queue_url: https://x}\n",
			want: "sqs.region is required",
		},
		"sns without topic": {
			yaml: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: aws-sns\n      sns: {region: eu-west-1}\n",
			want: "sns.topic_arn is required",
		},
		"gcp without project": {
			yaml: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: gcp\n      gcp: {topic: runs}\n",
			want: "gcp.project_id is required",
		},
		"duplicate ids": {
			yaml: "publishers:\n  - id: a\n    type: http\n    http: {url: https://x}\n  - id: a\n    type: http\n    http: {url: https://y}\n",
			want: "duplicate publisher id",
		},
		"empty file": {
			yaml: "publishers: []\n",
			want: "no publishers",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfigsFromYAML(t, tc.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
