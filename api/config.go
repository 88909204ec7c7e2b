package api

import (
	"time"

	"winsboard/reconcile"
	"winsboard/wins"
)

// 儲存後端種類
const (
	BackendMemory  = "memory"
	BackendUpstash = "upstash"
	BackendRedis   = "redis"
)

// 圖片儲存種類
const (
	BlobKindKV = "kv"
	BlobKindS3 = "s3"
)

type ServerConfig struct {
	Backend string

	Upstash UpstashConfig
	Redis   RedisConfig
	S3      S3Config
	DB      DBConfig
	Admin   AdminConfig
	Upload  UploadConfig
	Blob    BlobConfig
	Wins    WinsConfig
	Events  EventsConfig
	Sweep   SweepConfig
	CORS    CORSConfig
}

type UpstashConfig struct {
	URL   string
	Token string
	// CompareAndSwap 為 false 時不使用 EVAL，更新退化為 last-writer-wins
	CompareAndSwap bool
	// Timeout 為單次 REST 請求的逾時時間
	Timeout time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	StreamKeys   RedisStreamKeys
	StreamMaxLen int64
}

type RedisStreamKeys struct {
	Events string
}

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	UsePathStyle    bool
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type AdminConfig struct {
	Secret string
}

type UploadConfig struct {
	MaxBytes int64
	// StrictImageType 開啟時只接受不含腳本的圖片格式
	StrictImageType bool
}

type BlobConfig struct {
	Kind      string
	TTL       time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type WinsConfig struct {
	MaxAttempts     int
	RetryBackoff    time.Duration
	ListConcurrency int
	IdempotencyTTL  time.Duration
}

type EventsConfig struct {
	KeepAlive  time.Duration
	BufferSize int
}

type SweepConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Remove   bool
}

type CORSConfig struct {
	AllowOrigins []string
}

// DefaultServerConfig 回傳只使用記憶體後端的預設設定
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Backend: BackendMemory,
		Upstash: UpstashConfig{CompareAndSwap: true, Timeout: 10 * time.Second},
		Redis: RedisConfig{
			StreamKeys:   RedisStreamKeys{Events: "wins-events"},
			StreamMaxLen: 1000,
		},
		S3:     S3Config{Region: "auto", Prefix: "wins-image/"},
		DB:     DBConfig{Port: 5432},
		Upload: UploadConfig{MaxBytes: 10 << 20},
		Blob: BlobConfig{
			Kind:     BlobKindKV,
			TTL:      wins.DefaultBlobTTL,
			CacheTTL: 5 * time.Minute,
		},
		Wins: WinsConfig{
			MaxAttempts:     wins.DefaultConfig().MaxAttempts,
			RetryBackoff:    wins.DefaultConfig().RetryBackoff,
			ListConcurrency: wins.DefaultConfig().ListConcurrency,
			IdempotencyTTL:  wins.DefaultIdempotencyTTL,
		},
		Events: EventsConfig{KeepAlive: 30 * time.Second, BufferSize: 16},
		Sweep:  SweepConfig{Grace: reconcile.DefaultGracePeriod},
	}
}
