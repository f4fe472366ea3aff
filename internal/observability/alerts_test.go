package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

func TestLedgerAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)
	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-ledger.md"))
	require.NoError(t, err)

	var rules ruleFile
	require.NoError(t, yaml.Unmarshal(data, &rules))
	require.Len(t, rules.Groups, 1)
	require.Equal(t, "ledger", rules.Groups[0].Name)

	want := map[string]string{
		"HighErrorRate":       "critical",
		"LedgerOutOfBalance":  "critical",
		"RejectionSpike":      "warning",
		"IntegrityJobFailing": "warning",
		"IntegrityCheckStale": "warning",
	}
	got := map[string]string{}
	for _, rule := range rules.Groups[0].Rules {
		got[rule.Alert] = rule.Labels["severity"]
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)

		// every runbook link must land on a heading that exists
		link := rule.Annotations["runbook"]
		require.True(t, strings.HasPrefix(link, "docs/runbook-ledger.md#"), rule.Alert)
		anchor := strings.TrimPrefix(link, "docs/runbook-ledger.md#")
		assert.Contains(t, string(runbook), "## "+anchor+"\n", rule.Alert)
	}
	assert.Equal(t, want, got)
}

// Metric names referenced by the rules must be the ones the service exports.
func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)
	for _, name := range []string{
		"odyssey_http_requests_total",
		"odyssey_ledger_balance_difference",
		"odyssey_ledger_rejections_total",
	} {
		assert.Contains(t, string(data), name)
	}
}
