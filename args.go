package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"winsboard/api"
)

func ParseArgs() Args {
	defaults := api.DefaultServerConfig()

	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("log-level", "info", "debug, info, warn or error")
	pflag.String("backend", defaults.Backend, "memory, upstash or redis")
	pflag.StringSlice("cors-allow-origins", nil, "empty allows all origins")

	// admin config
	pflag.String("admin-secret", "", "")

	// upstash config
	pflag.String("upstash-url", "", "")
	pflag.String("upstash-token", "", "")
	pflag.Bool("upstash-compare-and-swap", defaults.Upstash.CompareAndSwap, "")
	pflag.Duration("upstash-timeout", defaults.Upstash.Timeout, "0 disables the request timeout")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 0, "")
	pflag.String("redis-key-prefix", "", "")

	// redis stream keys
	pflag.String("redis-stream-key-for-events", defaults.Redis.StreamKeys.Events, "")
	pflag.Int64("redis-stream-max-len", defaults.Redis.StreamMaxLen, "")

	// blob config
	pflag.String("blob-kind", defaults.Blob.Kind, "kv or s3")
	pflag.Duration("blob-ttl", defaults.Blob.TTL, "")
	pflag.Int("blob-cache-size", defaults.Blob.CacheSize, "0 disables the cache; deletes only evict the local cache, so other instances may serve a deleted image until blob-cache-ttl")
	pflag.Duration("blob-cache-ttl", defaults.Blob.CacheTTL, "")

	// s3 config
	pflag.String("s3-endpoint", "", "")
	pflag.String("s3-region", defaults.S3.Region, "")
	pflag.String("s3-bucket", "", "")
	pflag.String("s3-prefix", defaults.S3.Prefix, "")
	pflag.String("s3-access-key-id", "", "")
	pflag.String("s3-secret-access-key", "", "")
	pflag.Bool("s3-use-path-style", false, "")

	// upload config
	pflag.Int64("upload-max-bytes", defaults.Upload.MaxBytes, "")
	pflag.Bool("upload-strict-image-type", false, "")

	// wins config
	pflag.Int("wins-max-attempts", defaults.Wins.MaxAttempts, "")
	pflag.Duration("wins-retry-backoff", defaults.Wins.RetryBackoff, "")
	pflag.Int("wins-list-concurrency", defaults.Wins.ListConcurrency, "")
	pflag.Duration("wins-idempotency-ttl", defaults.Wins.IdempotencyTTL, "")

	// events config
	pflag.Duration("events-keep-alive", defaults.Events.KeepAlive, "")
	pflag.Int("events-buffer-size", defaults.Events.BufferSize, "")

	// sweep config
	pflag.Duration("sweep-interval", 0, "0 disables the sweeper")
	pflag.Duration("sweep-grace", defaults.Sweep.Grace, "")
	pflag.Bool("sweep-remove", false, "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "empty disables deletion audits")
	pflag.Int("db-port", defaults.DB.Port, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("WINS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	// 沿用部署平台提供的環境變數名稱
	viper.BindEnv("upstash-url", "WINS_UPSTASH_URL", "UPSTASH_REDIS_REST_URL")
	viper.BindEnv("upstash-token", "WINS_UPSTASH_TOKEN", "UPSTASH_REDIS_REST_TOKEN")
	viper.BindEnv("admin-secret", "WINS_ADMIN_SECRET", "ADMIN_SECRET")

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		LogLevel:  viper.GetString("log-level"),
		ServerConfig: api.ServerConfig{
			Backend: viper.GetString("backend"),
			Upstash: api.UpstashConfig{
				URL:            viper.GetString("upstash-url"),
				Token:          viper.GetString("upstash-token"),
				CompareAndSwap: viper.GetBool("upstash-compare-and-swap"),
				Timeout:        viper.GetDuration("upstash-timeout"),
			},
			Redis: api.RedisConfig{
				Addr:      viper.GetString("redis-addr"),
				Password:  viper.GetString("redis-password"),
				DB:        viper.GetInt("redis-db"),
				KeyPrefix: viper.GetString("redis-key-prefix"),
				StreamKeys: api.RedisStreamKeys{
					Events: viper.GetString("redis-stream-key-for-events"),
				},
				StreamMaxLen: viper.GetInt64("redis-stream-max-len"),
			},
			S3: api.S3Config{
				Endpoint:        viper.GetString("s3-endpoint"),
				Region:          viper.GetString("s3-region"),
				Bucket:          viper.GetString("s3-bucket"),
				Prefix:          viper.GetString("s3-prefix"),
				AccessKeyID:     viper.GetString("s3-access-key-id"),
				SecretAccessKey: viper.GetString("s3-secret-access-key"),
				UsePathStyle:    viper.GetBool("s3-use-path-style"),
			},
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Admin: api.AdminConfig{
				Secret: viper.GetString("admin-secret"),
			},
			Upload: api.UploadConfig{
				MaxBytes:        viper.GetInt64("upload-max-bytes"),
				StrictImageType: viper.GetBool("upload-strict-image-type"),
			},
			Blob: api.BlobConfig{
				Kind:      viper.GetString("blob-kind"),
				TTL:       viper.GetDuration("blob-ttl"),
				CacheSize: viper.GetInt("blob-cache-size"),
				CacheTTL:  viper.GetDuration("blob-cache-ttl"),
			},
			Wins: api.WinsConfig{
				MaxAttempts:     viper.GetInt("wins-max-attempts"),
				RetryBackoff:    viper.GetDuration("wins-retry-backoff"),
				ListConcurrency: viper.GetInt("wins-list-concurrency"),
				IdempotencyTTL:  viper.GetDuration("wins-idempotency-ttl"),
			},
			Events: api.EventsConfig{
				KeepAlive:  viper.GetDuration("events-keep-alive"),
				BufferSize: viper.GetInt("events-buffer-size"),
			},
			Sweep: api.SweepConfig{
				Interval: viper.GetDuration("sweep-interval"),
				Grace:    viper.GetDuration("sweep-grace"),
				Remove:   viper.GetBool("sweep-remove"),
			},
			CORS: api.CORSConfig{
				AllowOrigins: viper.GetStringSlice("cors-allow-origins"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	LogLevel     string
	ServerConfig api.ServerConfig
}

// Validate 檢查必要的參數，回傳所有缺少或不合法的項目
func (args Args) Validate() error {
	var errs []error
	if args.ServerURL == "" {
		errs = append(errs, errors.New("server-url is required"))
	}
	if _, err := args.Level(); err != nil {
		errs = append(errs, err)
	}
	config := args.ServerConfig
	if config.Admin.Secret == "" {
		slog.Warn("admin-secret is empty, all deletions will be rejected")
	}
	switch config.Backend {
	case api.BackendMemory:
	case api.BackendUpstash:
		if config.Upstash.URL == "" || config.Upstash.Token == "" {
			errs = append(errs, errors.New("upstash-url and upstash-token are required for the upstash backend"))
		}
		if config.Sweep.Interval > 0 {
			errs = append(errs, errors.New("sweep-interval requires the memory or redis backend"))
		}
	case api.BackendRedis:
		if config.Redis.Addr == "" {
			errs = append(errs, errors.New("redis-addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", config.Backend))
	}
	switch config.Blob.Kind {
	case api.BlobKindKV:
	case api.BlobKindS3:
		if config.S3.Bucket == "" || config.S3.Endpoint == "" {
			errs = append(errs, errors.New("s3-endpoint and s3-bucket are required for the s3 blob store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob kind %q", config.Blob.Kind))
	}
	// 快取只存在於單一程序，多實例共用後端時刪除不會通知其他實例
	if config.Blob.CacheSize > 0 && config.Backend != api.BackendMemory {
		slog.Warn("blob-cache-size is enabled with a shared backend, other instances may serve deleted images until blob-cache-ttl",
			slog.String("backend", config.Backend), slog.Duration("blobCacheTTL", config.Blob.CacheTTL))
	}
	if config.Wins.MaxAttempts <= 0 {
		errs = append(errs, errors.New("wins-max-attempts must be positive"))
	}
	return errors.Join(errs...)
}

// Level 解析日誌等級
func (args Args) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(args.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log-level %q", args.LogLevel)
	}
	return level, nil
}
