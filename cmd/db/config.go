package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const configFileName = "nub.yaml"

// initConfig loads a config file (if one exists) supplying defaults
// for flags the caller didn't set explicitly: the node cache size and
// LZ4 compression level. A missing file is not an error -- the
// compiled-in defaults below apply.
func initConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(configFileName)
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("cacheSize", 10)
	viper.SetDefault("compressionLevel", 0)

	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	} else if cfgFile != "" {
		log.WithError(err).Warn("could not read requested config file, using defaults")
	} else {
		log.Debug("no config file found, using defaults")
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}
