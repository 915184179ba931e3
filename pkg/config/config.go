package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Config struct {
	Server    ServerConfig
	Network   NetworkConfig
	Teams     TeamsConfig
	Arena     ArenaConfig
	Entity    EntityConfig
	Pickup    PickupConfig
	Round     RoundConfig
	Protocol  ProtocolConfig
	Dispatch  DispatchConfig
	RateLimit RateLimitConfig
	Gamemode  GamemodeConfig `toml:"gamemode"`
}

type ServerConfig struct {
	Name    string `toml:"name"`
	Variant string `toml:"variant"`

	// logging configuration
	LogToFile bool `toml:"log_to_file"`
}

type NetworkConfig struct {
	ListenAddress string `toml:"listen_address"`
	WSPath        string `toml:"ws_path"`
	ReadLimit     int64  `toml:"read_limit"`
	ReadTimeout   int    `toml:"read_timeout"`
	PingInterval  int    `toml:"ping_interval"`
	WriteTimeout  int    `toml:"write_timeout"`

	// enet listener for native clients, 0 disables it
	EnetPort     int `toml:"enet_port"`
	EnetMaxPeers int `toml:"enet_max_peers"`

	// udp server info responder, 0 disables it
	PingPort int `toml:"ping_port"`
}

type TeamsConfig struct {
	Team1 TeamInfo `toml:"team1"`
	Team2 TeamInfo `toml:"team2"`
}

type TeamInfo struct {
	Name  string `toml:"name"`
	Color [3]int `toml:"color"`
}

type ArenaConfig struct {
	Width       float64 `toml:"width"`
	Height      float64 `toml:"height"`
	WrapPadding float64 `toml:"wrap_padding"`
	SpawnMargin float64 `toml:"spawn_margin"`
}

type EntityConfig struct {
	DefaultSize float64 `toml:"default_size"`
	MaxSize     float64 `toml:"max_size"`
}

type PickupConfig struct {
	Size         float64 `toml:"size"`
	Margin       float64 `toml:"margin"`
	Growth       *bool   `toml:"growth"`
	GrowthStep   float64 `toml:"growth_step"`
	ServerDetect bool    `toml:"server_detect"`
	PollInterval int     `toml:"poll_interval_ms"`
}

type RoundConfig struct {
	Duration     int    `toml:"duration"`
	Intermission int    `toml:"intermission"`
	TiePolicy    string `toml:"tie_policy"`
}

type ProtocolConfig struct {
	PickupName string `toml:"pickup_name"`
	LeftEvent  string `toml:"left_event"`
}

type DispatchConfig struct {
	QueueSize int `toml:"queue_size"`
}

type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	MovementPerSec int  `toml:"movement_per_sec"`
	BurstSize      int  `toml:"burst_size"`
	// seconds a kicked address is refused, 0 lets it straight back in
	BanSeconds int `toml:"ban_seconds"`
}

type GamemodeConfig struct {
	Script string `toml:"script"`
}

const (
	TiePolicyNone  = "none"
	TiePolicyTeam1 = "team1"
	TiePolicyTeam2 = "team2"

	PickupTarget = "target"
	PickupStar   = "star"

	LeftEventPlayerLeft = "playerLeft"
	LeftEventDisconnect = "disconnect"
)

// variant presets describe the client flavours this server can back. They only
// fill fields the config file leaves empty.
type variantPreset struct {
	team1, team2 string
	pickup       string
	growth       bool
}

var variants = map[string]variantPreset{
	"doctor-virus":         {team1: "doctor", team2: "virus", pickup: PickupTarget, growth: true},
	"doctor-virus-classic": {team1: "doctor", team2: "virus", pickup: PickupTarget, growth: false},
	"star":                 {team1: "red", team2: "blue", pickup: PickupStar, growth: false},
}

func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns a configuration with every field set to its default value.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "arenasync"
	}
	if c.Server.Variant == "" {
		c.Server.Variant = "doctor-virus"
	}

	preset, ok := variants[c.Server.Variant]
	if ok {
		if c.Teams.Team1.Name == "" {
			c.Teams.Team1.Name = preset.team1
		}
		if c.Teams.Team2.Name == "" {
			c.Teams.Team2.Name = preset.team2
		}
		if c.Protocol.PickupName == "" {
			c.Protocol.PickupName = preset.pickup
		}
		if c.Pickup.Growth == nil {
			growth := preset.growth
			c.Pickup.Growth = &growth
		}
	}

	// network defaults
	if c.Network.ListenAddress == "" {
		c.Network.ListenAddress = ":8080"
	}
	if c.Network.WSPath == "" {
		c.Network.WSPath = "/ws"
	}
	if c.Network.ReadLimit == 0 {
		c.Network.ReadLimit = 4096
	}
	if c.Network.ReadTimeout == 0 {
		c.Network.ReadTimeout = 60
	}
	if c.Network.PingInterval == 0 {
		c.Network.PingInterval = 25
	}
	if c.Network.WriteTimeout == 0 {
		c.Network.WriteTimeout = 10
	}
	if c.Network.EnetMaxPeers == 0 {
		c.Network.EnetMaxPeers = 64
	}

	// arena defaults match the 1600x920 client canvas
	if c.Arena.Width == 0 {
		c.Arena.Width = 1600
	}
	if c.Arena.Height == 0 {
		c.Arena.Height = 920
	}
	if c.Arena.WrapPadding == 0 {
		c.Arena.WrapPadding = 5
	}
	if c.Arena.SpawnMargin == 0 {
		c.Arena.SpawnMargin = 50
	}

	if c.Entity.DefaultSize == 0 {
		c.Entity.DefaultSize = 53
	}
	if c.Entity.MaxSize == 0 {
		c.Entity.MaxSize = 200
	}

	if c.Pickup.Size == 0 {
		c.Pickup.Size = 53
	}
	if c.Pickup.Margin == 0 {
		c.Pickup.Margin = 50
	}
	if c.Pickup.Growth == nil {
		growth := false
		c.Pickup.Growth = &growth
	}
	if c.Pickup.GrowthStep == 0 {
		c.Pickup.GrowthStep = 10
	}
	if c.Pickup.PollInterval == 0 {
		c.Pickup.PollInterval = 100
	}

	if c.Round.Duration == 0 {
		c.Round.Duration = 120
	}
	if c.Round.TiePolicy == "" {
		c.Round.TiePolicy = TiePolicyNone
	}

	if c.Protocol.PickupName == "" {
		c.Protocol.PickupName = PickupTarget
	}
	if c.Protocol.LeftEvent == "" {
		c.Protocol.LeftEvent = LeftEventPlayerLeft
	}

	if c.Dispatch.QueueSize == 0 {
		c.Dispatch.QueueSize = 256
	}

	// rate limit defaults
	if c.RateLimit.MovementPerSec == 0 {
		c.RateLimit.MovementPerSec = 90
	}
	if c.RateLimit.BurstSize == 0 {
		c.RateLimit.BurstSize = 120
	}
}

func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server name cannot be empty")
	}

	if _, ok := variants[c.Server.Variant]; !ok {
		return fmt.Errorf("unknown variant: %q", c.Server.Variant)
	}

	if c.Teams.Team1.Name == "" || c.Teams.Team2.Name == "" {
		return fmt.Errorf("team names cannot be empty")
	}
	if c.Teams.Team1.Name == c.Teams.Team2.Name {
		return fmt.Errorf("team names must differ, both are %q", c.Teams.Team1.Name)
	}

	if err := validPort("enet_port", c.Network.EnetPort); err != nil {
		return err
	}
	if err := validPort("ping_port", c.Network.PingPort); err != nil {
		return err
	}
	if c.Network.ReadLimit < 64 {
		return fmt.Errorf("read_limit must be at least 64 bytes")
	}

	if c.Arena.Width <= 0 || c.Arena.Height <= 0 {
		return fmt.Errorf("arena dimensions must be positive, got %vx%v", c.Arena.Width, c.Arena.Height)
	}
	if c.Arena.WrapPadding < 0 {
		return fmt.Errorf("wrap_padding cannot be negative")
	}
	if c.Arena.SpawnMargin*2 >= c.Arena.Width || c.Arena.SpawnMargin*2 >= c.Arena.Height {
		return fmt.Errorf("spawn_margin %v leaves no room in the arena", c.Arena.SpawnMargin)
	}

	if c.Entity.DefaultSize <= 0 || c.Entity.MaxSize <= 0 {
		return fmt.Errorf("entity sizes must be positive")
	}
	if c.Entity.DefaultSize > c.Entity.MaxSize {
		return fmt.Errorf("default_size %v exceeds max_size %v", c.Entity.DefaultSize, c.Entity.MaxSize)
	}

	if c.Pickup.Size <= 0 {
		return fmt.Errorf("pickup size must be positive")
	}
	if c.Pickup.Margin*2 >= c.Arena.Width || c.Pickup.Margin*2 >= c.Arena.Height {
		return fmt.Errorf("pickup margin %v leaves no room in the arena", c.Pickup.Margin)
	}
	if c.Pickup.GrowthStep < 0 {
		return fmt.Errorf("growth_step cannot be negative")
	}

	if c.Round.Duration <= 0 {
		return fmt.Errorf("round duration must be positive")
	}
	if c.Round.Intermission < 0 {
		return fmt.Errorf("round intermission cannot be negative")
	}
	switch c.Round.TiePolicy {
	case TiePolicyNone, TiePolicyTeam1, TiePolicyTeam2:
	default:
		return fmt.Errorf("invalid tie_policy: %q", c.Round.TiePolicy)
	}

	switch c.Protocol.PickupName {
	case PickupTarget, PickupStar:
	default:
		return fmt.Errorf("invalid pickup_name: %q", c.Protocol.PickupName)
	}
	switch c.Protocol.LeftEvent {
	case LeftEventPlayerLeft, LeftEventDisconnect:
	default:
		return fmt.Errorf("invalid left_event: %q", c.Protocol.LeftEvent)
	}

	if c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("dispatch queue_size must be positive")
	}

	if c.RateLimit.BanSeconds < 0 {
		return fmt.Errorf("ban_seconds cannot be negative")
	}

	return nil
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid %s: %d", name, port)
	}
	return nil
}

func (c *Config) GrowthEnabled() bool {
	return c.Pickup.Growth != nil && *c.Pickup.Growth
}

// TeamNames returns the wire names of both teams, team 1 first.
func (c *Config) TeamNames() [2]string {
	return [2]string{c.Teams.Team1.Name, c.Teams.Team2.Name}
}

// DisplayName is the human readable form of a team name, "doctor" becomes "Doctor".
func (t TeamInfo) DisplayName() string {
	return cases.Title(language.English).String(t.Name)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pickup.PollInterval) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Network.ReadTimeout) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Network.PingInterval) * time.Second
}

func (c *Config) BanDuration() time.Duration {
	return time.Duration(c.RateLimit.BanSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Network.WriteTimeout) * time.Second
}

// Variants lists the accepted values of server.variant.
func Variants() []string {
	return []string{"doctor-virus", "doctor-virus-classic", "star"}
}
