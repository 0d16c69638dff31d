package config

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App         App           `yaml:"app"`
	Server      Server        `yaml:"server"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	AudioBucket string        `yaml:"audio_bucket"`
	OpenAI      OpenAI        `yaml:"openai"`
	Gateway     Gateway       `yaml:"gateway"`
	YtDlp       YtDlp         `yaml:"ytdlp"`
	Models      Models        `yaml:"models"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

// OpenAI holds the speech-to-text credential.
type OpenAI struct {
	APIKey string `yaml:"api_key"`
}

// Gateway holds the model-gateway credential and endpoint. When APIKey is
// empty the service falls back to the compiled-in model table.
type Gateway struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type YtDlp struct {
	Binary string `yaml:"binary"`
}

type Models struct {
	AllowlistPrefixes []string `yaml:"allowlist_prefixes"`
	RecommendedIDs    []string `yaml:"recommended_ids"`
	DefaultID         string   `yaml:"default_id"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 4)
	viper.SetDefault("ai_gateway_base_url", "https://ai-gateway.vercel.sh/v1")
	viper.SetDefault("yt_dlp_binary", "yt-dlp")
	viper.SetDefault("minio.bucket", "pitch-audio")
	viper.SetDefault("models.allowlist_prefixes", []string{"openai/", "anthropic/", "google/", "xai/", "meta-llama/"})
	viper.SetDefault("models.recommended_ids", []string{
		"openai/gpt-4o-mini",
		"anthropic/claude-haiku-4.5",
		"google/gemini-2.5-flash",
		"xai/grok-2",
	})
	viper.SetDefault("models.default_id", "openai/gpt-4o-mini")

	if err := viper.ReadInConfig(); err != nil {
		// env-only deployments run without a config.yaml
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	// object storage is optional, the audio archive is advisory only
	var minioClient *minio.Client
	if url := viper.GetString("minio.url"); url != "" {
		minioClient, err = minio.New(url, &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: false,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		DB:          db,
		Queue:       rabbitmq,
		Storage:     minioClient,
		AudioBucket: viper.GetString("minio.bucket"),
		OpenAI: OpenAI{
			APIKey: viper.GetString("openai_api_key"),
		},
		Gateway: Gateway{
			APIKey:  viper.GetString("ai_gateway_api_key"),
			BaseURL: viper.GetString("ai_gateway_base_url"),
		},
		YtDlp: YtDlp{
			Binary: viper.GetString("yt_dlp_binary"),
		},
		Models: Models{
			AllowlistPrefixes: viper.GetStringSlice("models.allowlist_prefixes"),
			RecommendedIDs:    viper.GetStringSlice("models.recommended_ids"),
			DefaultID:         viper.GetString("models.default_id"),
		},
	}, nil
}
