package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig without a file should fall back to defaults, got: %v", err)
	}

	if cfg.Server.CommandPrefix != "!" {
		t.Errorf("Expected default command prefix '!', got %q", cfg.Server.CommandPrefix)
	}
	if cfg.Lexicon.Timeout != 5*time.Second {
		t.Errorf("Expected default lookup timeout of 5s, got %v", cfg.Lexicon.Timeout)
	}
	if len(cfg.Game.DefaultLanguages) != 1 || cfg.Game.DefaultLanguages[0] != "en" {
		t.Errorf("Expected default languages [en], got %v", cfg.Game.DefaultLanguages)
	}
	if cfg.Game.FailedRoleRecovery != 30 {
		t.Errorf("Expected failed role recovery of 30, got %d", cfg.Game.FailedRoleRecovery)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  http_address: ":9000"
  single_player: true
lexicon:
  cache: bolt
  timeout: 2s
  cache_negative: true
game:
  default_languages: [en, de]
  global_blacklist: [ab, cd]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.HTTPAddress != ":9000" {
		t.Errorf("Expected http address :9000, got %s", cfg.Server.HTTPAddress)
	}
	if !cfg.Server.SinglePlayer {
		t.Error("Expected single player mode to be enabled")
	}
	if cfg.Lexicon.Cache != "bolt" || !cfg.Lexicon.CacheNegative {
		t.Errorf("Unexpected lexicon config: %+v", cfg.Lexicon)
	}
	if cfg.Lexicon.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", cfg.Lexicon.Timeout)
	}
	if len(cfg.Game.DefaultLanguages) != 2 {
		t.Errorf("Expected two default languages, got %v", cfg.Game.DefaultLanguages)
	}
	if len(cfg.Game.GlobalBlacklist) != 2 {
		t.Errorf("Expected two global blacklist entries, got %v", cfg.Game.GlobalBlacklist)
	}
	// untouched keys keep their defaults
	if cfg.Server.RPCAddress != ":8081" {
		t.Errorf("Expected default rpc address, got %s", cfg.Server.RPCAddress)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")
	t.Setenv("GAME_MISTAKE_PENALTY", "2.5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("Expected host from environment, got %s", cfg.Database.Postgres.Host)
	}
	if cfg.Game.MistakePenalty != 2.5 {
		t.Errorf("Expected mistake penalty 2.5 from environment, got %v", cfg.Game.MistakePenalty)
	}
}
