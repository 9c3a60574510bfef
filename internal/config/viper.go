// Package config builds the viper instance the CLI reads its settings
// from.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/biorecords/biorecords/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "BIORECORDS"

// EnvFiles are loaded before the environment is read. Variables already
// set are not overridden.
var EnvFiles = []string{".env", ".env.local"}

// New returns a viper instance reading BIORECORDS_* variables and the
// given config file, or ~/.biorecords.yaml and ./.biorecords.yaml when
// file is empty. A missing default file is not an error.
func New(file string) (*viper.Viper, error) {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "failed to read "+filepath.Base(file), err)
		}
		return v, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName(".biorecords")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "failed to read config file", err)
		}
	}
	return v, nil
}

// GetString returns key from v, falling back to the unprefixed
// environment variable of the same name.
func GetString(v *viper.Viper, key string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return os.Getenv(strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key)))
}
