package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winsboard/api"
)

func TestArgsValidate(t *testing.T) {
	valid := func() Args {
		config := api.DefaultServerConfig()
		config.Admin.Secret = "secret"
		return Args{ServerURL: "0.0.0.0:8080", LogLevel: "info", ServerConfig: config}
	}

	tests := []struct {
		name    string
		modify  func(*Args)
		wantErr string
	}{
		{name: "預設設定", modify: func(*Args) {}},
		{name: "缺少位址", modify: func(a *Args) { a.ServerURL = "" }, wantErr: "server-url is required"},
		{name: "日誌等級錯誤", modify: func(a *Args) { a.LogLevel = "loud" }, wantErr: "invalid log-level"},
		{name: "upstash缺少憑證", modify: func(a *Args) { a.ServerConfig.Backend = api.BackendUpstash }, wantErr: "upstash-url and upstash-token are required"},
		{name: "upstash不能掃描", modify: func(a *Args) {
			a.ServerConfig.Backend = api.BackendUpstash
			a.ServerConfig.Upstash.URL = "https://example.upstash.io"
			a.ServerConfig.Upstash.Token = "token"
			a.ServerConfig.Sweep.Interval = time.Minute
		}, wantErr: "sweep-interval requires"},
		{name: "redis缺少位址", modify: func(a *Args) { a.ServerConfig.Backend = api.BackendRedis }, wantErr: "redis-addr is required"},
		{name: "未知的後端", modify: func(a *Args) { a.ServerConfig.Backend = "etcd" }, wantErr: `unknown backend "etcd"`},
		{name: "s3缺少bucket", modify: func(a *Args) { a.ServerConfig.Blob.Kind = api.BlobKindS3 }, wantErr: "s3-endpoint and s3-bucket are required"},
		{name: "未知的圖片儲存", modify: func(a *Args) { a.ServerConfig.Blob.Kind = "disk" }, wantErr: `unknown blob kind "disk"`},
		{name: "重試次數", modify: func(a *Args) { a.ServerConfig.Wins.MaxAttempts = 0 }, wantErr: "wins-max-attempts must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := valid()
			tt.modify(&args)
			err := args.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestArgsValidate_SharedBlobCache(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name     string
		backend  string
		size     int
		wantWarn bool
	}{
		{name: "預設關閉快取", backend: api.BackendRedis, size: api.DefaultServerConfig().Blob.CacheSize},
		{name: "單機記憶體後端", backend: api.BackendMemory, size: 64},
		{name: "共用後端開啟快取", backend: api.BackendRedis, size: 64, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			config := api.DefaultServerConfig()
			config.Admin.Secret = "secret"
			config.Backend = tt.backend
			config.Redis.Addr = "localhost:6379"
			config.Blob.CacheSize = tt.size
			args := Args{ServerURL: "0.0.0.0:8080", LogLevel: "info", ServerConfig: config}

			require.NoError(t, args.Validate())
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "blob-cache-size is enabled with a shared backend")
			} else {
				assert.NotContains(t, buf.String(), "blob-cache-size")
			}
		})
	}
}

func TestArgsLevel(t *testing.T) {
	level, err := Args{LogLevel: "debug"}.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = Args{LogLevel: "WARN"}.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
