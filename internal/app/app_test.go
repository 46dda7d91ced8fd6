package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/feedcloud/internal/config"
	"github.com/hitoshi/feedcloud/internal/metrics"
)

func TestInit_LoadsConfigAndSetsUpLogging(t *testing.T) {
	t.Setenv("SCHEDULER_TIME_INTERVAL", "120")

	var buf bytes.Buffer
	cfg := Init(&buf)

	if cfg.SchedulerInterval != 120*time.Second {
		t.Errorf("SchedulerInterval = %v, want %v", cfg.SchedulerInterval, 120*time.Second)
	}

	// グローバルロガーがJSON形式で指定のwriterに出力すること
	slog.Info("初期化テスト", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログがJSONとして読めない: %v", err)
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestIngestionPipeline_SchedulerMetricsScrapeable(t *testing.T) {
	cfg := &config.Config{
		FetchTimeout: 5 * time.Second,
		FetchMaxSize: 1024,
	}
	pipeline := newIngestionPipeline(cfg, nil)

	// スケジューラに渡すコレクターの記録が同じレジストリから公開されること
	pipeline.collector.RecordSweep(2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler(pipeline.registry).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "feedcloud_scheduler_sweeps_total 1") {
		t.Errorf("スクレイプ出力に sweeps_total が含まれるべき:\n%s", body)
	}
	if !strings.Contains(body, "feedcloud_scheduler_swept_feeds_total 2") {
		t.Error("スクレイプ出力に swept_feeds_total が含まれるべき")
	}
}
