package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"tallyd/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("discord.token", "TALLYD_DISCORD_TOKEN")
	viper.BindEnv("logger.level", "TALLYD_LOG_LEVEL")
	viper.BindEnv("persistence.driver", "TALLYD_PERSISTENCE_DRIVER")
	viper.BindEnv("persistence.postgresDSN", "TALLYD_POSTGRES_DSN")
	viper.BindEnv("persistence.saveInterval", "TALLYD_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "TALLYD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "TALLYD_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "tallyd"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
