package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"winsboard/adapters/audit"
	"winsboard/adapters/cache"
	"winsboard/adapters/kv"
	redisAdapter "winsboard/adapters/redis"
	internalS3 "winsboard/adapters/s3"
	"winsboard/adapters/sse"
	"winsboard/adapters/upstash"
	"winsboard/models"
	"winsboard/reconcile"
	"winsboard/wins"
)

// IDeletionRecorder 記錄管理員的刪除請求
type IDeletionRecorder interface {
	Record(ctx context.Context, audit models.DeletionAudit) error
}

type ServerOption func(*ServerImpl)

// WithEvents 設定 SSE 連線管理器，未設定時使用沒有任何來源事件的本地管理器
func WithEvents(events sse.IConnectionManager[models.WinEvent]) ServerOption {
	return func(s *ServerImpl) {
		s.events = events
	}
}

// WithDeletionRecorder 設定刪除紀錄的儲存位置
func WithDeletionRecorder(recorder IDeletionRecorder) ServerOption {
	return func(s *ServerImpl) {
		s.recorder = recorder
	}
}

// WithSweeper 設定背景掃描器
func WithSweeper(sweeper *reconcile.Sweeper) ServerOption {
	return func(s *ServerImpl) {
		s.sweeper = sweeper
	}
}

// WithServerLogger 設定日誌記錄器
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *ServerImpl) {
		s.logger = logger
	}
}

type ServerImpl struct {
	service     *wins.Service
	events      sse.IConnectionManager[models.WinEvent]
	recorder    IDeletionRecorder
	sweeper     *reconcile.Sweeper
	htmlChecker *bluemonday.Policy
	logger      *slog.Logger

	// 以下只有 NewServer 建立的實例才會設定，Close 時一併釋放
	producer    *redisAdapter.Producer[models.WinEvent]
	redisClient *redis.Client
	db          *gorm.DB

	config ServerConfig
}

// New 以已建立好的 wins.Service 建立伺服器
func New(service *wins.Service, config ServerConfig, opts ...ServerOption) (*ServerImpl, error) {
	const op = "New"
	if service == nil {
		return nil, fmt.Errorf("[%s] service cannot be nil", op)
	}
	impl := &ServerImpl{
		service:     service,
		htmlChecker: bluemonday.StrictPolicy(),
		logger:      slog.Default(),
		config:      config,
	}
	for _, opt := range opts {
		opt(impl)
	}
	impl.logger = impl.logger.With(slog.String("caller", "Server"))
	if impl.events == nil {
		impl.events = sse.NewConnectionManager[models.WinEvent](
			sse.NewLocalSource[models.WinEvent](config.Events.BufferSize),
			sse.WithManagerBufferSize(config.Events.BufferSize),
		)
	}
	return impl, nil
}

// NewServer 依設定建立所有外部連線與元件
func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"
	logger := slog.Default()

	// 初始化Redis連線
	var redisClient *redis.Client
	if config.Backend == BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
	}

	// 初始化KV後端
	var backend kv.IBackend
	switch config.Backend {
	case BackendMemory, "":
		backend = kv.NewMemoryBackend()
	case BackendUpstash:
		client, err := upstash.NewClient(
			config.Upstash.URL,
			config.Upstash.Token,
			upstash.WithCompareAndSwap(config.Upstash.CompareAndSwap),
			upstash.WithHTTPClient(&http.Client{Timeout: config.Upstash.Timeout}),
			upstash.WithClientLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create upstash client, err=%w", op, err)
		}
		backend = client.Backend()
	case BackendRedis:
		backend = redisAdapter.NewStore(redisClient, redisAdapter.WithStorePrefix(config.Redis.KeyPrefix))
	default:
		return nil, fmt.Errorf("[%s] Unknown backend %q", op, config.Backend)
	}

	// 初始化圖片儲存
	var blobs wins.IBlobStore
	switch config.Blob.Kind {
	case BlobKindKV, "":
		blobs = wins.NewKVBlobStore(backend, wins.WithBlobTTL(config.Blob.TTL), wins.WithBlobLogger(logger))
	case BlobKindS3:
		s3Cfg, err := awsCfg.LoadDefaultConfig(
			context.Background(),
			awsCfg.WithBaseEndpoint(config.S3.Endpoint),
			awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")),
			awsCfg.WithRegion(config.S3.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
		}
		client := s3.NewFromConfig(s3Cfg, func(o *s3.Options) {
			o.UsePathStyle = config.S3.UsePathStyle
		})
		store, err := internalS3.NewBlobStore(
			client,
			config.S3.Bucket,
			internalS3.WithBlobPrefix(config.S3.Prefix),
			internalS3.WithBlobTTL(config.Blob.TTL),
			internalS3.WithMaxObjectSize(config.Upload.MaxBytes),
			internalS3.WithBlobLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create S3 blob store, err=%w", op, err)
		}
		blobs = store
	default:
		return nil, fmt.Errorf("[%s] Unknown blob kind %q", op, config.Blob.Kind)
	}
	blobs = cache.NewBlobCache(blobs, config.Blob.CacheSize, config.Blob.CacheTTL, cache.WithBlobCacheLogger(logger))

	// 初始化事件來源，有Redis時透過stream讓每個實例都收到事件
	var (
		publisher wins.IEventPublisher
		source    sse.ISource[models.WinEvent]
		producer  *redisAdapter.Producer[models.WinEvent]
	)
	if redisClient != nil && config.Redis.StreamKeys.Events != "" {
		var err error
		producer, err = redisAdapter.NewProducer(
			redisClient,
			config.Redis.StreamKeys.Events,
			redisAdapter.WithProducerLogger[models.WinEvent](logger),
			redisAdapter.WithProducerMaxLen[models.WinEvent](config.Redis.StreamMaxLen),
			redisAdapter.WithProducerParseFunc(redisAdapter.ParseToMessageWithLabel(func(event models.WinEvent) string {
				return string(event.Type) + ":" + event.ID
			})),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create producer, err=%w", op, err)
		}
		consumer, err := redisAdapter.NewConsumer(
			redisClient,
			config.Redis.StreamKeys.Events,
			redisAdapter.WithConsumerLogger[models.WinEvent](logger),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create consumer, err=%w", op, err)
		}
		publisher = producer
		source = consumer
	} else {
		local := sse.NewLocalSource[models.WinEvent](config.Events.BufferSize)
		publisher = local
		source = local
	}
	events := sse.NewConnectionManager[models.WinEvent](source,
		sse.WithManagerLogger(logger),
		sse.WithManagerBufferSize(config.Events.BufferSize),
	)

	// 初始化戰績服務
	service, err := wins.NewService(backend, blobs, wins.Config{
		AdminSecret:     config.Admin.Secret,
		MaxAttempts:     config.Wins.MaxAttempts,
		RetryBackoff:    config.Wins.RetryBackoff,
		ListConcurrency: config.Wins.ListConcurrency,
		IdempotencyTTL:  config.Wins.IdempotencyTTL,
	}, wins.WithServiceLogger(logger), wins.WithEventPublisher(publisher))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create wins service, err=%w", op, err)
	}

	opts := []ServerOption{WithEvents(events), WithServerLogger(logger)}

	// 初始化資料庫連線，沒有設定時不保存刪除紀錄
	var db *gorm.DB
	if config.DB.Host != "" {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
		gormConfig := &gorm.Config{TranslateError: true}
		if config.DB.Schema != "" {
			gormConfig.NamingStrategy = schema.NamingStrategy{
				TablePrefix: config.DB.Schema + ".",
			}
		}
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
		}
		repository, err := audit.NewRepository(db, audit.WithRepositoryLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create audit repository, err=%w", op, err)
		}
		if err := repository.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("[%s] Fail to migrate audit table, err=%w", op, err)
		}
		opts = append(opts, WithDeletionRecorder(repository))
	}

	// 初始化背景掃描器
	if config.Sweep.Interval > 0 {
		scanner, ok := backend.(kv.IScanner)
		if !ok {
			return nil, fmt.Errorf("[%s] Backend %q cannot be swept", op, config.Backend)
		}
		sweepOpts := []reconcile.Option{
			reconcile.WithGracePeriod(config.Sweep.Grace),
			reconcile.WithRemove(config.Sweep.Remove),
			reconcile.WithConcurrency(config.Wins.ListConcurrency),
			reconcile.WithLogger(logger),
		}
		if redisClient != nil {
			sweepOpts = append(sweepOpts, reconcile.WithLock(redisAdapter.NewAutoRenewMutex(
				redisClient,
				config.Redis.KeyPrefix+"wins-sweeper-lock",
				redisAdapter.WithAutoRenewMutexLogger(logger),
			)))
		}
		sweeper, err := reconcile.NewSweeper(service, scanner, blobs, sweepOpts...)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create sweeper, err=%w", op, err)
		}
		opts = append(opts, WithSweeper(sweeper))
	}

	impl, err := New(service, config, opts...)
	if err != nil {
		return nil, err
	}
	impl.producer = producer
	impl.redisClient = redisClient
	impl.db = db
	return impl, nil
}

func (impl *ServerImpl) Start() {
	// 啟動producer
	if impl.producer != nil {
		impl.producer.Start()
	}
	// 啟動sse connection manager
	impl.events.Start()
	// 啟動背景掃描
	if impl.sweeper != nil {
		impl.sweeper.Start(impl.config.Sweep.Interval)
	}
}

// Drain 關閉所有 SSE 連線，讓 http.Server.Shutdown 不必等待長連線
func (impl *ServerImpl) Drain() {
	impl.events.Done()
}

func (impl *ServerImpl) Close() {
	// 關閉背景掃描
	if impl.sweeper != nil {
		impl.sweeper.Close()
	}
	// 關閉sse connection manager
	impl.events.Done()
	// 關閉producer
	if impl.producer != nil {
		impl.producer.Close()
	}
	if impl.redisClient != nil {
		if err := impl.redisClient.Close(); err != nil {
			impl.logger.Warn("Fail to close redis client", slog.Any("error", err))
		}
	}
	if impl.db != nil {
		if sqlDB, err := impl.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				impl.logger.Warn("Fail to close database", slog.Any("error", err))
			}
		}
	}
}

// Router 建立包含所有路由的 gin engine
func (impl *ServerImpl) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(impl.config.CORS.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = impl.config.CORS.AllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, AdminSecretHeader, IdempotencyKeyHeader)
	router.Use(cors.New(corsConfig))

	impl.RegisterHandlers(router)
	return router
}
