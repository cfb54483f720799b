package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Timeout() != 2*time.Second {
		t.Errorf("expected 2s storage timeout, got %s", cfg.Storage.Timeout())
	}
	if cfg.Lifecycle.DeleteDelay() != 5*time.Second {
		t.Errorf("expected 5s delete delay, got %s", cfg.Lifecycle.DeleteDelay())
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected kafka disabled, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without POSTGRES_DSN")
	}
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "a:9092" || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	body := "settings:\n  max_tickets_per_user: 5\n  ticket_prefix: support-\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := LoadSettingsDefaults(path)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if s.MaxTicketsPerUser != 5 {
		t.Errorf("expected 5, got %d", s.MaxTicketsPerUser)
	}
	if s.TicketPrefix != "support-" {
		t.Errorf("expected support-, got %q", s.TicketPrefix)
	}
	if s.LogsChannelName != "ticket-logs" {
		t.Errorf("expected built-in logs channel to survive, got %q", s.LogsChannelName)
	}
}

func TestLoadSettingsDefaults_RejectsZeroQuota(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("settings:\n  max_tickets_per_user: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSettingsDefaults(path); err == nil {
		t.Fatal("expected error for zero quota")
	}
}
