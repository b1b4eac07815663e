package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadCommandlineArgsFromConfigFile merges the config file into viper. If cfgFile is empty,
// $HOME/.<name>.yaml is used if present. Environment variables take precedence over the file.
func LoadCommandlineArgsFromConfigFile(v *viper.Viper, cfgFile string, name string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error getting user home directory: %s", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName("." + name)
	}

	v.AutomaticEnv()

	err := v.MergeInConfig()
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			// Only returned when looking for the default file, which users don't have to create.
		case *os.PathError:
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] config file %s not found: %s", cfgFile, err)
		default:
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error reading config file %s: %s", v.ConfigFileUsed(), err)
		}
	}
	return nil
}
