package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf, slog.LevelInfo)

	log.Info("テストメッセージ", slog.String("feed_link", "https://example.com/feed.xml"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログがJSONとして読めない: %v", err)
	}
	if entry["msg"] != "テストメッセージ" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["feed_link"] != "https://example.com/feed.xml" {
		t.Errorf("feed_link = %v", entry["feed_link"])
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf, slog.LevelWarn)

	log.Info("出力されないはず")
	if buf.Len() != 0 {
		t.Errorf("Infoレベルのログが出力された: %s", buf.String())
	}

	log.Warn("出力されるはず")
	if buf.Len() == 0 {
		t.Error("Warnレベルのログが出力されるべき")
	}
}
