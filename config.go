// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/linksmart/go-sec/authz"
	"github.com/linksmart/wot-servient/catalog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID      string             `json:"serviceID" yaml:"serviceID"`
	Description    string             `json:"description" yaml:"description"`
	PublicEndpoint string             `json:"publicEndpoint" yaml:"publicEndpoint"`
	BindAddr       string             `json:"bindAddr" yaml:"bindAddr"`
	BindPort       int                `json:"bindPort" yaml:"bindPort"`
	Storage        StorageConfig      `json:"storage" yaml:"storage"`
	Notification   NotificationConfig `json:"notification" yaml:"notification"`
	DNSSD          DNSSDConfig        `json:"dnssd" yaml:"dnssd"`
	MQTT           MQTTConfig         `json:"mqtt" yaml:"mqtt"`
	ServiceCatalog ServiceCatalog     `json:"serviceCatalog" yaml:"serviceCatalog"`
	Auth           ValidatorConf      `json:"auth" yaml:"auth"`
	DirectoryAuth  ObtainerConf       `json:"directoryAuth" yaml:"directoryAuth"`
	// Paths of TD templates produced and exposed at start-up
	Things []string `json:"things" yaml:"things"`
}

type StorageConfig struct {
	Type string `json:"type" yaml:"type"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

type NotificationConfig struct {
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Capacity uint64        `json:"capacity" yaml:"capacity"`
}

type DNSSDConfig struct {
	Publish struct {
		Enabled    bool     `json:"enabled" yaml:"enabled"`
		Instance   string   `json:"instance" yaml:"instance"`
		Domain     string   `json:"domain" yaml:"domain"`
		Interfaces []string `json:"interfaces" yaml:"interfaces"`
	} `json:"publish" yaml:"publish"`
	Browse struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		Domain  string `json:"domain" yaml:"domain"`
	} `json:"browse" yaml:"browse"`
}

type MQTTConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Broker      string `json:"broker" yaml:"broker"`
	ClientID    string `json:"clientID" yaml:"clientID"`
	TopicPrefix string `json:"topicPrefix" yaml:"topicPrefix"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
}

type ServiceCatalog struct {
	Enabled  bool         `json:"enabled" yaml:"enabled"`
	Discover bool         `json:"discover" yaml:"discover"`
	Endpoint string       `json:"endpoint" yaml:"endpoint"`
	Ttl      int          `json:"ttl" yaml:"ttl"`
	Auth     ObtainerConf `json:"auth" yaml:"auth"`
}

var supportedBackends = map[string]bool{
	catalog.BackendMemory:  true,
	catalog.BackendLevelDB: true,
}

func (c *Config) Validate() error {
	if c.BindAddr == "" || c.BindPort == 0 || c.PublicEndpoint == "" {
		return fmt.Errorf("BindAddr, BindPort, and PublicEndpoint have to be defined")
	}
	if _, err := url.Parse(c.PublicEndpoint); err != nil {
		return fmt.Errorf("PublicEndpoint should be a valid URL")
	}
	for name, storage := range map[string]StorageConfig{"storage": c.Storage, "notification storage": c.Notification.Storage} {
		if !supportedBackends[storage.Type] {
			return fmt.Errorf("unsupported %s backend: %s", name, storage.Type)
		}
		if _, err := url.Parse(storage.DSN); err != nil {
			return fmt.Errorf("%s DSN should be a valid URL", name)
		}
	}
	if c.Notification.Capacity == 0 {
		return fmt.Errorf("notification capacity must be positive")
	}

	if c.DNSSD.Publish.Enabled && c.DNSSD.Publish.Instance == "" {
		return fmt.Errorf("DNS-SD instance name has to be defined for publishing")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("MQTT broker has to be defined")
		}
		if _, err := url.Parse(c.MQTT.Broker); err != nil {
			return fmt.Errorf("MQTT broker should be a valid URL")
		}
	}

	if c.ServiceCatalog.Enabled {
		if c.ServiceCatalog.Endpoint == "" && !c.ServiceCatalog.Discover {
			return fmt.Errorf("All ServiceCatalog entries must have either endpoint or a discovery flag defined")
		}
		if c.ServiceCatalog.Ttl <= 0 {
			return fmt.Errorf("All ServiceCatalog entries must have TTL >= 0")
		}
		if c.ServiceCatalog.Auth.Enabled {
			// Validate ticket obtainer config
			if err := c.ServiceCatalog.Auth.Validate(); err != nil {
				return err
			}
		}
	}

	if c.Auth.Enabled {
		// Validate ticket validator config
		if err := c.Auth.Validate(); err != nil {
			return err
		}
	}

	if c.DirectoryAuth.Enabled {
		if err := c.DirectoryAuth.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// loadConfig reads a JSON or YAML (by file extension) config file and applies the environment overrides
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Config{
		Notification: NotificationConfig{
			Storage:  StorageConfig{Type: catalog.BackendMemory},
			Capacity: 100,
		},
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(file, &config)
	default:
		err = json.Unmarshal(file, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}

	// Override loaded values with environment variables
	err = envconfig.Process("td", &config)
	if err != nil {
		return nil, err
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Ticket Validator Config
type ValidatorConf struct {
	// Auth switch
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Authentication provider name
	Provider string `json:"provider" yaml:"provider"`
	// Authentication provider URL
	ProviderURL string `json:"providerURL" yaml:"providerURL"`
	// Client ID
	ClientID string `json:"clientID" yaml:"clientID"`
	// Basic Authentication switch
	BasicEnabled bool `json:"basicEnabled" yaml:"basicEnabled"`
	// Authorization config
	Authz *authz.Conf `json:"authorization" yaml:"authorization"`
}

func (c ValidatorConf) Validate() error {

	// Validate Provider
	if c.Provider == "" {
		return errors.New("Ticket Validator: Auth provider name (provider) is not specified.")
	}

	// Validate ProviderURL
	if c.ProviderURL == "" {
		return errors.New("Ticket Validator: Auth provider URL (providerURL) is not specified.")
	}
	_, err := url.Parse(c.ProviderURL)
	if err != nil {
		return errors.New("Ticket Validator: Auth provider URL (providerURL) is invalid: " + err.Error())
	}

	// Validate ClientID
	if c.ClientID == "" {
		return errors.New("Ticket Validator: Auth Client ID (clientID) is not specified.")
	}

	// Validate Authorization
	if c.Authz != nil {
		if err := c.Authz.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Ticket Obtainer Client Config
type ObtainerConf struct {
	// Auth switch
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Authentication provider name
	Provider string `json:"provider" yaml:"provider"`
	// Authentication provider URL
	ProviderURL string `json:"providerURL" yaml:"providerURL"`
	// Client ID
	ClientID string `json:"clientID" yaml:"clientID"`
	// User credentials
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

func (c ObtainerConf) Validate() error {

	// Validate Provider
	if c.Provider == "" {
		return errors.New("Ticket Obtainer: Auth provider name (provider) is not specified.")
	}

	// Validate ProviderURL
	if c.ProviderURL == "" {
		return errors.New("Ticket Obtainer: Auth provider URL (ProviderURL) is not specified.")
	}
	_, err := url.Parse(c.ProviderURL)
	if err != nil {
		return errors.New("Ticket Obtainer: Auth provider URL (ProviderURL) is invalid: " + err.Error())
	}

	// Validate Username
	if c.Username == "" {
		return errors.New("Ticket Obtainer: Auth Username (username) is not specified.")
	}

	// Validate ClientID
	if c.ClientID == "" {
		return errors.New("Ticket Obtainer: Auth Client ID (clientID) is not specified.")
	}

	return nil
}
