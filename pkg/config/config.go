package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the launcher process. Defaults come from
// Default(), an optional YAML file overlays them, and environment variables
// win over both.
type Config struct {
	// HTTP surface
	Listen string `yaml:"listen"`
	// AuthToken guards /api/* when non-empty (bearer header or ?token=).
	AuthToken string `yaml:"auth_token"`

	// TailscaleIP is the bind address for per-container published ports.
	// Private overlay only; not LAN-reachable.
	TailscaleIP string `yaml:"tailscale_ip"`

	// DataDir holds instances.json and the per-instance workspaces.
	DataDir string `yaml:"data_dir"`

	// Docker
	DockerHost string `yaml:"docker_host"` // empty = environment default
	Image      string `yaml:"image"`

	// Orchestration constants
	BasePort      int `yaml:"base_port"`
	MaxInstances  int `yaml:"max_instances"`
	ContainerPort int `yaml:"container_port"`

	// Container resource and security profile
	MemoryBytes     int64    `yaml:"memory_bytes"`
	MemorySwapBytes int64    `yaml:"memory_swap_bytes"`
	NanoCPUs        int64    `yaml:"nano_cpus"`
	ReadOnlyRootfs  bool     `yaml:"read_only_rootfs"`
	TmpfsSizeBytes  int64    `yaml:"tmpfs_size_bytes"`
	CapDrop         []string `yaml:"cap_drop"`
	CapAdd          []string `yaml:"cap_add"`

	// Intervals
	ReconcilePeriod time.Duration `yaml:"reconcile_period"`
	SettleInterval  time.Duration `yaml:"settle_interval"`

	// Template directory seeded into new workspaces (optional).
	TemplateDir string `yaml:"template_dir"`

	// Host-service relay
	RelayListen string `yaml:"relay_listen"`
	RelayTarget string `yaml:"relay_target"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          "0.0.0.0:8780",
		TailscaleIP:     "100.118.141.107",
		DataDir:         "data",
		Image:           "openclaw:local",
		BasePort:        19000,
		MaxInstances:    20,
		ContainerPort:   18789,
		MemoryBytes:     2 << 30,
		MemorySwapBytes: 4 << 30,
		NanoCPUs:        2_000_000_000,
		TmpfsSizeBytes:  256 << 20,
		CapDrop:         []string{"ALL"},
		CapAdd:          []string{"CHOWN", "SETUID", "SETGID"},
		ReconcilePeriod: 60 * time.Second,
		SettleInterval:  2 * time.Second,
		RelayListen:     "172.17.0.1:11434",
		RelayTarget:     "127.0.0.1:11434",
		LogLevel:        "info",
		LogJSON:         true,
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if path is non-empty), then the environment. A .env file in the
// working directory is folded into the environment first, if present.
func Load(path string) (Config, error) {
	// Ignore a missing .env; it is a development convenience.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setStr(&cfg.Listen, "LAUNCHER_LISTEN")
	setStr(&cfg.AuthToken, "LAUNCHER_TOKEN")
	setStr(&cfg.TailscaleIP, "TAILSCALE_IP")
	setStr(&cfg.DataDir, "LAUNCHER_DATA_DIR")
	setStr(&cfg.DockerHost, "LAUNCHER_DOCKER_HOST")
	setStr(&cfg.Image, "LAUNCHER_IMAGE")
	setStr(&cfg.TemplateDir, "LAUNCHER_TEMPLATE_DIR")
	setStr(&cfg.LogLevel, "LAUNCHER_LOG_LEVEL")

	if v, ok := os.LookupEnv("LAUNCHER_BASE_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BasePort = n
		}
	}
	if v, ok := os.LookupEnv("LAUNCHER_MAX_INSTANCES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxInstances = n
		}
	}
	if v, ok := os.LookupEnv("LAUNCHER_RECONCILE_PERIOD"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconcilePeriod = d
		}
	}
}
