package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const Name = "loxodon"
const ConfigFileName = "config.yaml"

// Federation gate modes.
const (
	FederationModeBlocklist = "blocklist"
	FederationModeAllowlist = "allowlist"
)

// FederationConf selects which remote hosts the server will talk to.
type FederationConf struct {
	Mode         string   `yaml:"mode"` // "blocklist" or "allowlist"
	AllowedHosts []string `yaml:"allowedHosts"`
	BlockedHosts []string `yaml:"blockedHosts"`
}

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host            string
		HttpPort        int            `yaml:"httpPort"`
		SslDomain       string         `yaml:"sslDomain"`
		AuthorizedFetch bool           `yaml:"authorizedFetch"`
		WithJournald    bool           `yaml:"withJournald"`
		WithPprof       bool           `yaml:"withPprof"`
		Federation      FederationConf `yaml:"federation"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("LOXODON_HOST"); v != "" {
		c.Conf.Host = v
	}

	if v := os.Getenv("LOXODON_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = port
	}

	if v := os.Getenv("LOXODON_SSLDOMAIN"); v != "" {
		c.Conf.SslDomain = v
	}

	if v := os.Getenv("LOXODON_AUTHORIZED_FETCH"); v != "" {
		c.Conf.AuthorizedFetch = v == "true"
	}

	if os.Getenv("LOXODON_WITH_JOURNALD") == "true" {
		c.Conf.WithJournald = true
	}

	if os.Getenv("LOXODON_WITH_PPROF") == "true" {
		c.Conf.WithPprof = true
	}

	if v := os.Getenv("LOXODON_FEDERATION_MODE"); v != "" {
		c.Conf.Federation.Mode = v
	}

	if v := os.Getenv("LOXODON_BLOCKED_HOSTS"); v != "" {
		c.Conf.Federation.BlockedHosts = splitHostList(v)
	}

	if v := os.Getenv("LOXODON_ALLOWED_HOSTS"); v != "" {
		c.Conf.Federation.AllowedHosts = splitHostList(v)
	}

	return c, nil
}

func splitHostList(v string) []string {
	var hosts []string
	for _, h := range strings.Split(v, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
