package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// 環境変数が未設定の状態でデフォルト値が適用されることを検証
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SCHEDULER_TIME_INTERVAL", "")
	t.Setenv("SERVER_PORT", "")

	cfg := Load()

	if cfg.DatabaseURL != defaultDatabaseURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, defaultDatabaseURL)
	}
	if cfg.Environment != EnvDev {
		t.Errorf("Environment = %q, want %q", cfg.Environment, EnvDev)
	}
	if cfg.SchedulerInterval != 3000*time.Second {
		t.Errorf("SchedulerInterval = %v, want %v", cfg.SchedulerInterval, 3000*time.Second)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want %v", cfg.FetchTimeout, 30*time.Second)
	}
	if cfg.FetchMaxSize != 5242880 {
		t.Errorf("FetchMaxSize = %d, want %d", cfg.FetchMaxSize, 5242880)
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want %q", cfg.MetricsPort, "9090")
	}
}

func TestLoad_MetricsPortFromEnv(t *testing.T) {
	t.Setenv("METRICS_PORT", "9191")

	cfg := Load()

	if cfg.MetricsPort != "9191" {
		t.Errorf("MetricsPort = %q, want %q", cfg.MetricsPort, "9191")
	}
}

func TestLoad_SchedulerIntervalFromEnv(t *testing.T) {
	t.Setenv("SCHEDULER_TIME_INTERVAL", "60")

	cfg := Load()

	if cfg.SchedulerInterval != 60*time.Second {
		t.Errorf("SchedulerInterval = %v, want %v", cfg.SchedulerInterval, 60*time.Second)
	}
}

func TestLoad_InvalidIntervalFallsBack(t *testing.T) {
	t.Setenv("SCHEDULER_TIME_INTERVAL", "not-a-number")

	cfg := Load()

	if cfg.SchedulerInterval != 3000*time.Second {
		t.Errorf("SchedulerInterval = %v, want デフォルトの %v", cfg.SchedulerInterval, 3000*time.Second)
	}
}

func TestLoad_TestEnvironmentSwitchesDatabase(t *testing.T) {
	t.Setenv("ENVIRONMENT", EnvTest)
	t.Setenv("DATABASE_URL", "postgres://prod/db")
	t.Setenv("TEST_DATABASE_URL", "postgres://test/db")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://test/db" {
		t.Errorf("DatabaseURL = %q, want テスト用DBの %q", cfg.DatabaseURL, "postgres://test/db")
	}
}

func TestLoad_TestEnvironmentWithoutTestURL(t *testing.T) {
	// TEST_DATABASE_URLが未設定の場合はDATABASE_URLをそのまま使う
	t.Setenv("ENVIRONMENT", EnvTest)
	t.Setenv("DATABASE_URL", "postgres://prod/db")
	t.Setenv("TEST_DATABASE_URL", "")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://prod/db" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://prod/db")
	}
}
