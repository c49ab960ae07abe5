package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ssh-box/sshbox/internal/flagx"
	"github.com/ssh-box/sshbox/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1m" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	Backend               string         `json:"backend"`
	DatabaseDSN           string         `json:"database_dsn"`
	DynamoEndpoint        string         `json:"dynamo_endpoint"`
	DynamoRegion          string         `json:"dynamo_region"`
	DynamoTable           string         `json:"dynamo_table"`
	AWSAccessKey          string         `json:"aws_access_key"`
	AWSSecretKey          string         `json:"aws_secret_key"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
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

	config.EndpointAddr = c.EndpointAddr
	config.Backend = c.Backend
	config.DatabaseDSN = c.DatabaseDSN
	config.DynamoEndpoint = c.DynamoEndpoint
	config.DynamoRegion = c.DynamoRegion
	config.DynamoTable = c.DynamoTable
	config.AWSAccessKey = c.AWSAccessKey
	config.AWSSecretKey = c.AWSSecretKey
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
}
