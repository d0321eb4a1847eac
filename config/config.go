package config

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/lunacloud/stackctl/internal/models"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config carries the operator-tunable engine settings. Every field has a
// working default for the Lunacloud regions, so a settings file only needs
// to hold overrides.
type Config struct {
	API       API                 `mapstructure:"api"`
	Catalog   models.Catalog      `mapstructure:"catalog"`
	Snapshots models.SnapshotPlan `mapstructure:"snapshots"`
	Userdata  Userdata            `mapstructure:"userdata"`
	Teardown  Teardown            `mapstructure:"teardown"`
	Tags      Tags                `mapstructure:"tags"`
}

type API struct {
	Binary string `mapstructure:"binary"`
}

// Userdata points at the boot scripts attached to freshly created machines.
// Empty paths mean the machine boots bare.
type Userdata struct {
	Web string `mapstructure:"web"`
	DB  string `mapstructure:"db"`
}

// Teardown settle delays give the provider time to observe detach and
// expunge operations before the dependent delete is issued.
type Teardown struct {
	DetachSettle  time.Duration `mapstructure:"detach_settle"`
	NetworkSettle time.Duration `mapstructure:"network_settle"`
}

type Tags struct {
	Volume string `mapstructure:"volume"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	cfg := Config{}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToRegexpHookFunc(),
		))); err != nil {
		return Config{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.binary", "cmk")
	v.SetDefault("catalog.network_offering", "Default Guest Network")
	v.SetDefault("catalog.disk_offering", "data.disk.general")
	v.SetDefault("catalog.plans", []string{"small", "medium", "large"})
	v.SetDefault("catalog.template_keyword", "Ubuntu")
	v.SetDefault("catalog.template_filter", "^Ubuntu.*24.*$")
	v.SetDefault("snapshots.schedule", "00:03")
	v.SetDefault("snapshots.max_snaps", 3)
	v.SetDefault("snapshots.timezone", "America/Sao_Paulo")
	v.SetDefault("snapshots.zones", []string{"ZP01", "ZP02"})
	v.SetDefault("userdata.web", "")
	v.SetDefault("userdata.db", "")
	v.SetDefault("teardown.detach_settle", "2s")
	v.SetDefault("teardown.network_settle", "5s")
	v.SetDefault("tags.volume", "lunacloud-deploy-id")
}

func stringToRegexpHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf((*regexp.Regexp)(nil)) {
			return data, nil
		}

		return regexp.Compile(data.(string))
	}
}
