package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Media     MediaConfig
	FFmpeg    FFmpegConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	R2        R2Config
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

type JWTConfig struct {
	Secret string
}

// AuthConfig controls how the access token is located and verified.
type AuthConfig struct {
	CookieName string
	JWKSIssuer string
	Audience   string
}

type MediaConfig struct {
	Root      string
	URLPrefix string
	MaxUpload int64 // bytes
}

// FFmpegConfig holds the transcoder binary and per-invocation timeouts.
type FFmpegConfig struct {
	Binary           string
	ThumbnailTimeout time.Duration
	EncodeTimeout    time.Duration
	SegmentTimeout   time.Duration
	SegmentSeconds   int
}

type QueueConfig struct {
	Name        string
	Concurrency int
	MaxRetry    int
	TaskTimeout time.Duration
	LockTTL     time.Duration
}

type WorkerConfig struct {
	Embedded bool
}

type RateLimitConfig struct {
	UploadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Prefix          string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("auth.cookie_name", "AUTH_COOKIE_NAME")
	_ = v.BindEnv("auth.jwks_issuer", "AUTH_JWKS_ISSUER")
	_ = v.BindEnv("auth.audience", "AUTH_AUDIENCE")
	_ = v.BindEnv("media.root", "MEDIA_ROOT")
	_ = v.BindEnv("media.url_prefix", "MEDIA_URL")
	_ = v.BindEnv("media.max_upload", "MEDIA_MAX_UPLOAD")
	_ = v.BindEnv("ffmpeg.binary", "FFMPEG_BINARY")
	_ = v.BindEnv("ffmpeg.thumbnail_timeout", "FFMPEG_THUMBNAIL_TIMEOUT")
	_ = v.BindEnv("ffmpeg.encode_timeout", "FFMPEG_ENCODE_TIMEOUT")
	_ = v.BindEnv("ffmpeg.segment_timeout", "FFMPEG_SEGMENT_TIMEOUT")
	_ = v.BindEnv("ffmpeg.segment_seconds", "FFMPEG_SEGMENT_SECONDS")
	_ = v.BindEnv("queue.name", "QUEUE_NAME")
	_ = v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = v.BindEnv("queue.max_retry", "QUEUE_MAX_RETRY")
	_ = v.BindEnv("queue.task_timeout", "QUEUE_TASK_TIMEOUT")
	_ = v.BindEnv("queue.lock_ttl", "QUEUE_LOCK_TTL")
	_ = v.BindEnv("worker.embedded", "WORKER_EMBEDDED")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATE_LIMIT_UPLOAD_PER_HOUR")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("r2.prefix", "R2_PREFIX")

	setDefaults(v)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", "http://localhost:4200")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.path", "videoflix.db")
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("auth.cookie_name", "access_token")
	v.SetDefault("media.root", "media")
	v.SetDefault("media.url_prefix", "/media")
	v.SetDefault("media.max_upload", 2*1024*1024*1024)

	// Stage one re-encodes and needs generous timeouts, stage two only remuxes.
	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.thumbnail_timeout", "1m")
	v.SetDefault("ffmpeg.encode_timeout", "15m")
	v.SetDefault("ffmpeg.segment_timeout", "5m")
	v.SetDefault("ffmpeg.segment_seconds", 10)

	v.SetDefault("queue.name", "default")
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.max_retry", 0)
	// above the worst case of three encodes plus three segment runs
	v.SetDefault("queue.task_timeout", "90m")
	v.SetDefault("queue.lock_ttl", "90m")

	v.SetDefault("worker.embedded", true)
	v.SetDefault("ratelimit.upload_per_hour", 20)
	v.SetDefault("r2.prefix", "hls")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			CORSOrigins: v.GetString("server.cors_origins"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		Auth: AuthConfig{
			CookieName: v.GetString("auth.cookie_name"),
			JWKSIssuer: v.GetString("auth.jwks_issuer"),
			Audience:   v.GetString("auth.audience"),
		},
		Media: MediaConfig{
			Root:      v.GetString("media.root"),
			URLPrefix: v.GetString("media.url_prefix"),
			MaxUpload: v.GetInt64("media.max_upload"),
		},
		FFmpeg: FFmpegConfig{
			Binary:           v.GetString("ffmpeg.binary"),
			ThumbnailTimeout: v.GetDuration("ffmpeg.thumbnail_timeout"),
			EncodeTimeout:    v.GetDuration("ffmpeg.encode_timeout"),
			SegmentTimeout:   v.GetDuration("ffmpeg.segment_timeout"),
			SegmentSeconds:   v.GetInt("ffmpeg.segment_seconds"),
		},
		Queue: QueueConfig{
			Name:        v.GetString("queue.name"),
			Concurrency: v.GetInt("queue.concurrency"),
			MaxRetry:    v.GetInt("queue.max_retry"),
			TaskTimeout: v.GetDuration("queue.task_timeout"),
			LockTTL:     v.GetDuration("queue.lock_ttl"),
		},
		Worker: WorkerConfig{
			Embedded: v.GetBool("worker.embedded"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
			Prefix:          v.GetString("r2.prefix"),
		},
	}
}
