package config

import (
	"database/sql"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
	"time"
)

type Config struct {
	App           App           `yaml:"app"`
	Server        Server        `yaml:"server"`
	Storage       Storage       `yaml:"storage"`
	DB            *sql.DB       `yaml:"db"`
	Queue         *RabbitMQ     `yaml:"rabbitmq"`
	Archive       *minio.Client `yaml:"archive"`
	ArchiveBucket string        `yaml:"archive_bucket"`
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

// Storage describes the managed on-disk layout and the limits enforced by
// the upload and streaming paths.
type Storage struct {
	MediaDir      string `yaml:"media_dir"`
	TranscodedDir string `yaml:"transcoded_dir"`
	ThumbnailDir  string `yaml:"thumbnail_dir"`
	ChunkDir      string `yaml:"chunk_dir"`
	SessionDir    string `yaml:"session_dir"`
	LockDir       string `yaml:"lock_dir"`

	MaxChunkBytes   int64 `yaml:"max_chunk_bytes"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	MinVariantBytes int64 `yaml:"min_variant_bytes"`
	// StreamBytesPerSec caps playback bandwidth per request; 0 disables.
	StreamBytesPerSec int           `yaml:"stream_bytes_per_sec"`
	LockStaleAfter    time.Duration `yaml:"lock_stale_after"`
	// ReconcileCron schedules the periodic analyze pass; empty disables.
	ReconcileCron string `yaml:"reconcile_cron"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("storage.max_chunk_bytes", 10<<20)
	viper.SetDefault("storage.max_upload_bytes", 20<<30)
	viper.SetDefault("storage.min_variant_bytes", 1024)
	viper.SetDefault("storage.lock_stale_after", "5s")
	viper.SetDefault("server.workers", 4)

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
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

	// Archive bucket is optional; cleanup offloads deleted files there
	// before removal when configured.
	var archive *minio.Client
	if viper.GetString("minio.url") != "" {
		archive, err = minio.New(viper.GetString("minio.url"), &minio.Options{
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
		Storage: Storage{
			MediaDir:          viper.GetString("storage.media_dir"),
			TranscodedDir:     viper.GetString("storage.transcoded_dir"),
			ThumbnailDir:      viper.GetString("storage.thumbnail_dir"),
			ChunkDir:          viper.GetString("storage.chunk_dir"),
			SessionDir:        viper.GetString("storage.session_dir"),
			LockDir:           viper.GetString("storage.lock_dir"),
			MaxChunkBytes:     viper.GetInt64("storage.max_chunk_bytes"),
			MaxUploadBytes:    viper.GetInt64("storage.max_upload_bytes"),
			MinVariantBytes:   viper.GetInt64("storage.min_variant_bytes"),
			StreamBytesPerSec: viper.GetInt("storage.stream_bytes_per_sec"),
			LockStaleAfter:    viper.GetDuration("storage.lock_stale_after"),
			ReconcileCron:     viper.GetString("storage.reconcile_cron"),
		},
		DB:            db,
		Queue:         rabbitmq,
		Archive:       archive,
		ArchiveBucket: viper.GetString("minio.bucket"),
	}, nil
}
