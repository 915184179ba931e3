package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.Server.Variant != "doctor-virus" {
		t.Fatalf("variant = %q", cfg.Server.Variant)
	}
	if cfg.TeamNames() != [2]string{"doctor", "virus"} {
		t.Fatalf("team names = %v", cfg.TeamNames())
	}
	if !cfg.GrowthEnabled() {
		t.Fatal("growth disabled for doctor-virus")
	}
	if cfg.Entity.DefaultSize != 53 || cfg.Arena.Width != 1600 || cfg.Arena.Height != 920 {
		t.Fatalf("unexpected geometry: %+v %+v", cfg.Entity, cfg.Arena)
	}
	if cfg.PollInterval() != 100*time.Millisecond || cfg.ReadTimeout() != time.Minute {
		t.Fatalf("unexpected intervals: %v %v", cfg.PollInterval(), cfg.ReadTimeout())
	}
	if cfg.Round.TiePolicy != TiePolicyNone || cfg.BanDuration() != 0 {
		t.Fatalf("unexpected round or ban defaults: %q %v", cfg.Round.TiePolicy, cfg.BanDuration())
	}
}

func TestVariantPresets(t *testing.T) {
	tests := []struct {
		variant string
		teams   [2]string
		pickup  string
		growth  bool
	}{
		{"doctor-virus", [2]string{"doctor", "virus"}, PickupTarget, true},
		{"doctor-virus-classic", [2]string{"doctor", "virus"}, PickupTarget, false},
		{"star", [2]string{"red", "blue"}, PickupStar, false},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, "[server]\nvariant = \""+tt.variant+"\"\n"))
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("invalid: %v", err)
			}
			if cfg.TeamNames() != tt.teams || cfg.Protocol.PickupName != tt.pickup || cfg.GrowthEnabled() != tt.growth {
				t.Fatalf("got teams %v pickup %q growth %v", cfg.TeamNames(), cfg.Protocol.PickupName, cfg.GrowthEnabled())
			}
		})
	}
}

func TestFileOverridesPreset(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
[server]
variant = "doctor-virus"

[teams.team2]
name = "germ"

[pickup]
growth = false

[round]
duration = 30
tie_policy = "team1"

[ratelimit]
enabled = true
ban_seconds = 45
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid: %v", err)
	}

	if cfg.TeamNames() != [2]string{"doctor", "germ"} {
		t.Fatalf("team names = %v", cfg.TeamNames())
	}
	if cfg.GrowthEnabled() {
		t.Fatal("explicit growth = false ignored")
	}
	if cfg.Round.Duration != 30 || cfg.Round.TiePolicy != TiePolicyTeam1 {
		t.Fatalf("round = %+v", cfg.Round)
	}
	if !cfg.RateLimit.Enabled || cfg.BanDuration() != 45*time.Second {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("shipped config invalid: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
	if _, err := LoadConfig(writeConfig(t, "[server\nname = ")); err == nil {
		t.Fatal("broken toml accepted")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown variant", func(c *Config) { c.Server.Variant = "tag" }, "unknown variant"},
		{"same team names", func(c *Config) { c.Teams.Team2.Name = c.Teams.Team1.Name }, "must differ"},
		{"bad port", func(c *Config) { c.Network.EnetPort = 70000 }, "enet_port"},
		{"tiny read limit", func(c *Config) { c.Network.ReadLimit = 8 }, "read_limit"},
		{"oversized default", func(c *Config) { c.Entity.DefaultSize = c.Entity.MaxSize + 1 }, "exceeds max_size"},
		{"margin fills arena", func(c *Config) { c.Pickup.Margin = c.Arena.Height }, "pickup margin"},
		{"negative intermission", func(c *Config) { c.Round.Intermission = -1 }, "intermission"},
		{"tie policy", func(c *Config) { c.Round.TiePolicy = "coin" }, "tie_policy"},
		{"left event", func(c *Config) { c.Protocol.LeftEvent = "gone" }, "left_event"},
		{"negative ban", func(c *Config) { c.RateLimit.BanSeconds = -5 }, "ban_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := (TeamInfo{Name: "virus"}).DisplayName(); got != "Virus" {
		t.Fatalf("DisplayName = %q", got)
	}
}
