package config

import (
	"flag"
	"os"
	"time"

	"github.com/ssh-box/sshbox/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-k string   item store backend: "memory", "dynamo" or "postgres"
//	-d string   PostgreSQL DSN
//	-e string   DynamoDB base endpoint (e.g., "http://127.0.0.1:8000/")
//	-g string   DynamoDB region
//	-b string   DynamoDB table name
//	-u string   AWS access key id
//	-p string   AWS secret access key
//	-s string   JWT HMAC secret key
//	-t int      login token validity, minutes
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-d", "-e", "-g", "-b", "-u", "-p", "-s", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.Backend, "k", config.Backend, "item store backend (memory|dynamo|postgres)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DynamoEndpoint, "e", config.DynamoEndpoint, "DynamoDB base endpoint")
	fs.StringVar(&config.DynamoRegion, "g", config.DynamoRegion, "DynamoDB region")
	fs.StringVar(&config.DynamoTable, "b", config.DynamoTable, "DynamoDB table name")
	fs.StringVar(&config.AWSAccessKey, "u", config.AWSAccessKey, "AWS access key id")
	fs.StringVar(&config.AWSSecretKey, "p", config.AWSSecretKey, "AWS secret access key")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidityDuration := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidityDuration) * time.Minute
}
