// Package config holds the service configuration. Values come from
// defaults, an optional config file, and SLIPWAY_* environment variables,
// highest wins.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr     string        // control-plane listen address
	ProxyDomain    string        // base domain for the subdomain proxy, e.g. "localhost"
	DockerHost     string        // docker daemon address; empty defers to DOCKER_HOST
	BuildDir       string        // root for staged build contexts; empty uses the OS temp dir
	ReadyWindow    time.Duration // bounded startup window for the listener
	ProbeInterval  time.Duration // delay between readiness probe attempts
	LogLevel       string
	BuildFromGitOK bool // allow git URLs as deployment sources
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("proxy_domain", "localhost")
	v.SetDefault("docker_host", "")
	v.SetDefault("build_dir", "")
	// GPU serving images load model weights at startup, and the original
	// workload downloads them on first boot. Keep the window generous.
	v.SetDefault("ready_window", 120*time.Second)
	v.SetDefault("probe_interval", time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("build_from_git", true)
}

// Load reads the configuration, optionally from the file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SLIPWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Config{
		ListenAddr:     v.GetString("listen_addr"),
		ProxyDomain:    v.GetString("proxy_domain"),
		DockerHost:     v.GetString("docker_host"),
		BuildDir:       v.GetString("build_dir"),
		ReadyWindow:    v.GetDuration("ready_window"),
		ProbeInterval:  v.GetDuration("probe_interval"),
		LogLevel:       v.GetString("log_level"),
		BuildFromGitOK: v.GetBool("build_from_git"),
	}, nil
}
