package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	content := readAsset(t, "grafana", "duckchat_dashboard.json")

	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}
	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "prometheus", "duckchat_rules.yaml")

	requiredAlerts := []string{
		"DuckChatAnswerRateLow",
		"DuckChatExecutionFailuresHigh",
		"DuckChatModelErrorsHigh",
		"DuckChatModelLatencyP95High",
		"DuckChatSnippetLatencyP95High",
		"DuckChatHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}
}

func TestAlertsOnlyReferenceRecordedSeries(t *testing.T) {
	alerts := readAsset(t, "prometheus", "duckchat_rules.yaml")
	records := readAsset(t, "prometheus", "duckchat_recording_rules.yaml")

	for _, line := range strings.Split(alerts, "\n") {
		expr, ok := strings.CutPrefix(strings.TrimSpace(line), "expr: ")
		if !ok {
			continue
		}
		series := strings.Fields(expr)[0]
		if !strings.Contains(records, "record: "+series) {
			t.Fatalf("alert expression %q uses unrecorded series %q", expr, series)
		}
	}
}

func TestRecordingRulesUseExportedMetrics(t *testing.T) {
	text := readAsset(t, "prometheus", "duckchat_recording_rules.yaml")
	for _, metric := range []string{
		"duckchat_turns_total",
		"duckchat_model_calls_total",
		"duckchat_model_call_duration_seconds_bucket",
		"duckchat_snippet_execution_duration_seconds_bucket",
		"duckchat_model_retries_total",
		"duckchat_http_requests_total",
	} {
		if !strings.Contains(text, metric) {
			t.Fatalf("recording rules never reference %q", metric)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"duckchat_rules.yaml",
		"duckchat_recording_rules.yaml",
		"job_name: duckchat-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(append([]string{filepath.Dir(filename), "observability"}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}
