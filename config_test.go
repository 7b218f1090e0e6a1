// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linksmart/wot-servient/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "publicEndpoint": "http://localhost:8081",
  "bindAddr": "0.0.0.0",
  "bindPort": 8081,
  "storage": {"type": "memory"},
  "mqtt": {"enabled": true, "broker": "tcp://localhost:1883", "topicPrefix": "wot"},
  "things": ["lamp.json"]
}`

const yamlConfig = `
publicEndpoint: http://localhost:8081
bindAddr: 0.0.0.0
bindPort: 8081
storage:
  type: leveldb
  dsn: ./data
notification:
  capacity: 10
dnssd:
  publish:
    enabled: true
    instance: servient
    domain: local.
`

func writeConfig(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		config, err := loadConfig(writeConfig(t, "conf.json", jsonConfig))
		require.NoError(t, err)

		assert.Equal(t, 8081, config.BindPort)
		assert.Equal(t, catalog.BackendMemory, config.Storage.Type)
		assert.True(t, config.MQTT.Enabled)
		assert.Equal(t, "wot", config.MQTT.TopicPrefix)
		assert.Equal(t, []string{"lamp.json"}, config.Things)
		// defaults
		assert.Equal(t, catalog.BackendMemory, config.Notification.Storage.Type)
		assert.EqualValues(t, 100, config.Notification.Capacity)
	})

	t.Run("yaml", func(t *testing.T) {
		config, err := loadConfig(writeConfig(t, "conf.yml", yamlConfig))
		require.NoError(t, err)

		assert.Equal(t, catalog.BackendLevelDB, config.Storage.Type)
		assert.Equal(t, "./data", config.Storage.DSN)
		assert.EqualValues(t, 10, config.Notification.Capacity)
		assert.True(t, config.DNSSD.Publish.Enabled)
		assert.Equal(t, "servient", config.DNSSD.Publish.Instance)
		assert.Equal(t, "local.", config.DNSSD.Publish.Domain)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("TD_BINDPORT", "9000")
		t.Setenv("TD_STORAGE_TYPE", catalog.BackendLevelDB)
		t.Setenv("TD_STORAGE_DSN", "/tmp/servient")

		config, err := loadConfig(writeConfig(t, "conf.json", jsonConfig))
		require.NoError(t, err)

		assert.Equal(t, 9000, config.BindPort)
		assert.Equal(t, catalog.BackendLevelDB, config.Storage.Type)
		assert.Equal(t, "/tmp/servient", config.Storage.DSN)
	})
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"syntax":          `{"bindPort": }`,
		"missing address": `{"bindPort": 8081, "storage": {"type": "memory"}}`,
		"unknown backend": `{"publicEndpoint": "http://localhost", "bindAddr": "0.0.0.0", "bindPort": 8081, "storage": {"type": "sql"}}`,
		"mqtt without broker": `{"publicEndpoint": "http://localhost", "bindAddr": "0.0.0.0", "bindPort": 8081,
			"storage": {"type": "memory"}, "mqtt": {"enabled": true}}`,
		"dnssd without instance": `{"publicEndpoint": "http://localhost", "bindAddr": "0.0.0.0", "bindPort": 8081,
			"storage": {"type": "memory"}, "dnssd": {"publish": {"enabled": true}}}`,
		"auth without provider": `{"publicEndpoint": "http://localhost", "bindAddr": "0.0.0.0", "bindPort": 8081,
			"storage": {"type": "memory"}, "auth": {"enabled": true}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, "conf.json", content))
			assert.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSampleConfig(t *testing.T) {
	config, err := loadConfig("conf/wot-servient.json")
	require.NoError(t, err)
	assert.Equal(t, catalog.BackendLevelDB, config.Storage.Type)
	assert.False(t, config.Auth.Enabled)
}
