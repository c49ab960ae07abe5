package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ssh-box/sshbox/internal/flagx"
	"github.com/ssh-box/sshbox/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	UnlockTimeout      timex.Duration `json:"unlock_timeout"`
}

// parseJson loads configuration values from a JSON file named by the
// -c or -config command-line flags. Without the flag no file is loaded.
// An unreadable or invalid file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.ServerEndpointAddr = c.ServerEndpointAddr
	config.UnlockTimeout = time.Duration(c.UnlockTimeout.Duration)
}
