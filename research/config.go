package research

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/title"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Title     TitleConfig     `mapstructure:"title"`
	Converter ConverterConfig `mapstructure:"converter"`
	Rename    RenameConfig    `mapstructure:"rename"`
	Web       WebConfig       `mapstructure:"web"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Dropbox   DropboxConfig   `mapstructure:"dropbox"`
	Notion    NotionConfig    `mapstructure:"notion"`
}

type TitleConfig struct {
	title.Config     `mapstructure:",squash"`
	MetadataFallback bool `mapstructure:"metadata_fallback"`
}

type ConverterConfig struct {
	Bin     string        `mapstructure:"bin"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RenameConfig struct {
	DryRun        bool `mapstructure:"dry_run"`
	MaxNameLength int  `mapstructure:"max_name_length"`
}

type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

type DropboxConfig struct {
	Token      string `mapstructure:"token"`
	RootFolder string `mapstructure:"root_folder"`
	AppSecret  string `mapstructure:"app_secret"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func SetDefaults(v *viper.Viper) {
	tc := title.DefaultConfig()
	v.SetDefault("config.title.multiline", tc.Multiline)
	v.SetDefault("config.title.top_margin", tc.TopMargin)
	v.SetDefault("config.title.min_length", tc.MinLength)
	v.SetDefault("config.title.max_length", tc.MaxLength)
	v.SetDefault("config.title.metadata_fallback", false)
	v.SetDefault("config.converter.bin", "pdftohtml")
	v.SetDefault("config.converter.timeout", time.Minute)
	v.SetDefault("config.rename.dry_run", false)
	v.SetDefault("config.rename.max_name_length", 200)
	v.SetDefault("config.web.addr", ":8080")
	v.SetDefault("config.redis.addr", "")
	v.SetDefault("config.redis.password", "")
	v.SetDefault("config.redis.db", 0)
	v.SetDefault("config.redis.ttl", time.Duration(0))
	v.SetDefault("config.dropbox.token", "")
	v.SetDefault("config.dropbox.root_folder", "")
	v.SetDefault("config.dropbox.app_secret", "")
	v.SetDefault("config.notion.token", "")
	v.SetDefault("config.notion.database_id", "")
}

// ReadConfig loads the configuration from cfgFile, or from pdftitle.yaml in
// the working directory or ~/.config/pdftitle when cfgFile is empty. A
// missing file is not an error. PDFTITLE_* environment variables override
// file values, e.g. PDFTITLE_CONFIG_TITLE_MIN_LENGTH.
func ReadConfig(v *viper.Viper, cfgFile string) (AppConfig, error) {
	SetDefaults(v)
	v.SetEnvPrefix("PDFTITLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pdftitle")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pdftitle")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, errors.Wrap(err, "read config failed")
		}
	}

	var root struct {
		Config AppConfig `mapstructure:"config"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return AppConfig{}, errors.Wrap(err, "unmarshal config failed")
	}
	if err := root.Config.Title.Validate(); err != nil {
		return AppConfig{}, errors.Wrap(err, "invalid title config")
	}
	return root.Config, nil
}
