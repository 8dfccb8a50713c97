// Package bootstrap builds the process-wide resources shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	v1 "github.com/Rellinxe27/tacheSure-platform2-sub000/api/v1"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/config"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/notifications"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/internal/scheduling"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/migrations"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/database"
	"github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/storage"
)

// NewLogger builds a zap logger from the logging section
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Databases are the sqlx and gorm handles over one connection pool
type Databases struct {
	SQL  *sqlx.DB
	Gorm *gorm.DB
}

// Close closes the shared pool
func (d *Databases) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// OpenDatabases connects to postgres, applies migrations and returns both handles.
// It returns nil when the memory driver is configured.
func OpenDatabases(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Databases, error) {
	if cfg.UseMemory() {
		logger.Warn("Using in-memory repositories; state is lost on restart")
		return nil, nil
	}

	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db_name", cfg.DBName))
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if _, err := database.Migrate(ctx, db, migrationSource(cfg.MigrationsPath, logger), logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return &Databases{SQL: db, Gorm: gdb}, nil
}

// migrationSource prefers an on-disk directory so operators can ship hotfix
// migrations without a rebuild
func migrationSource(path string, logger *zap.Logger) fs.FS {
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			logger.Info("Using migrations from disk", zap.String("path", path))
			return os.DirFS(path)
		}
	}
	return migrations.FS
}

// AWSClients are the optional AWS-backed adapters
type AWSClients struct {
	Documents storage.S3Client
	Pusher    notifications.Pusher
}

// NewAWSClients builds S3 document storage and SNS push from the aws section.
// Missing bucket or topic leave the corresponding client unset.
func NewAWSClients(ctx context.Context, awsCfg config.AWSConfig, notifCfg config.NotificationsConfig, logger *zap.Logger) (*AWSClients, error) {
	clients := &AWSClients{}
	if awsCfg.DocumentBucket == "" && notifCfg.SNSTopicARN == "" {
		return clients, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(awsCfg.Region)}
	if awsCfg.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, "")))
	}
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	if awsCfg.DocumentBucket != "" {
		client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
			if awsCfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(awsCfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		clients.Documents = storage.NewS3Client(client)
		logger.Info("Storing verification documents in S3", zap.String("bucket", awsCfg.DocumentBucket))
	}
	if notifCfg.SNSTopicARN != "" {
		client := sns.NewFromConfig(sdkCfg, func(o *sns.Options) {
			if awsCfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(awsCfg.Endpoint)
			}
		})
		clients.Pusher = notifications.NewSNSPusher(client, notifCfg.SNSTopicARN)
		logger.Info("Sending push notifications through SNS", zap.String("topic", notifCfg.SNSTopicARN))
	}
	return clients, nil
}

// Marketplace wires the marketplace API from configuration
func Marketplace(cfg *config.Config, dbs *Databases, clients *AWSClients, logger *zap.Logger) (*v1.MarketplaceAPI, error) {
	deps := v1.Dependencies{
		DocumentBucket: cfg.AWS.DocumentBucket,
		VerifierToken:  cfg.Security.VerifierToken,
		Calendar: scheduling.CalendarConfig{
			SlotLength:  cfg.Scheduling.SlotLength,
			HorizonDays: cfg.Scheduling.HorizonDays,
		},
		MaxPending: cfg.Notifications.MaxPending,
		MaxTries:   cfg.Notifications.MaxTries,
		Logger:     logger,
	}
	if dbs != nil {
		deps.DB = dbs.SQL
		deps.Gorm = dbs.Gorm
	}
	if clients != nil {
		deps.Documents = clients.Documents
		deps.Pusher = clients.Pusher
	}
	return v1.SetupMarketplaceAPI(deps)
}
