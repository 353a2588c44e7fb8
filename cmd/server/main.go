// Command server starts the account and audio API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"concha-api/internal/api"
	"concha-api/internal/config"
	"concha-api/internal/observability/logging"
	"concha-api/internal/server"
	"concha-api/internal/service"
	"concha-api/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")

	storageDriver := flag.String("storage-driver", "", "user datastore driver (postgres or memory)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when establishing Postgres connections")

	objectDriver := flag.String("object-driver", "", "object storage driver (s3 or memory)")
	objectEndpoint := flag.String("object-endpoint", "", "object storage endpoint host[:port]")
	objectRegion := flag.String("object-region", "", "object storage region")
	objectAccessKey := flag.String("object-access-key", "", "object storage access key")
	objectSecretKey := flag.String("object-secret-key", "", "object storage secret key")
	objectUseSSL := flag.Bool("object-use-ssl", false, "use https for object storage requests")
	objectPublicEndpoint := flag.String("object-public-endpoint", "", "public base URL for stored object links")
	audioBucket := flag.String("audio-bucket", "", "bucket for audio session records")
	imageBucket := flag.String("image-bucket", "", "bucket for user images")
	bucketMetadataPath := flag.String("bucket-metadata", "", "path to the bucket-metadata TOML written by provision-buckets")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  config.FirstNonEmpty(*logLevel, config.Env("LOG_LEVEL")),
		Format: config.FirstNonEmpty(*logFormat, config.Env("LOG_FORMAT")),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := buildUserRepository(ctx, userStoreOptions{
		driver:          config.FirstNonEmpty(*storageDriver, config.Env("STORAGE_DRIVER"), "postgres"),
		dsn:             config.FirstNonEmpty(*postgresDSN, config.Env("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		maxConns:        config.ResolveInt(*postgresMaxConns, "POSTGRES_MAX_CONNS"),
		minConns:        config.ResolveInt(*postgresMinConns, "POSTGRES_MIN_CONNS"),
		maxConnLifetime: config.ResolveDuration(*postgresMaxConnLifetime, "POSTGRES_MAX_CONN_LIFETIME", 0),
		maxConnIdle:     config.ResolveDuration(*postgresMaxConnIdle, "POSTGRES_MAX_CONN_IDLE", 0),
		healthInterval:  config.ResolveDuration(*postgresHealthInterval, "POSTGRES_HEALTH_INTERVAL", 0),
		connectTimeout:  config.ResolveDuration(*postgresConnectTimeout, "POSTGRES_CONNECT_TIMEOUT", 0),
	})
	if err != nil {
		fatal(logger, "configure user datastore", err)
	}
	defer func() {
		if err := users.Close(context.Background()); err != nil {
			logger.Error("close user datastore", "error", err)
		}
	}()

	audioBucketName, imageBucketName, err := resolveBuckets(
		config.FirstNonEmpty(*audioBucket, config.Env("AUDIO_BUCKET")),
		config.FirstNonEmpty(*imageBucket, config.Env("IMAGE_BUCKET")),
		config.FirstNonEmpty(*bucketMetadataPath, config.Env("BUCKET_METADATA")),
	)
	if err != nil {
		fatal(logger, "resolve bucket names", err)
	}

	objectOptions := objectStoreOptions{
		driver:         config.FirstNonEmpty(*objectDriver, config.Env("OBJECT_DRIVER"), "s3"),
		endpoint:       config.FirstNonEmpty(*objectEndpoint, config.Env("OBJECT_ENDPOINT")),
		region:         config.FirstNonEmpty(*objectRegion, config.Env("OBJECT_REGION")),
		accessKey:      config.FirstNonEmpty(*objectAccessKey, config.Env("OBJECT_ACCESS_KEY")),
		secretKey:      config.FirstNonEmpty(*objectSecretKey, config.Env("OBJECT_SECRET_KEY")),
		useSSL:         config.ResolveBool(*objectUseSSL, "OBJECT_USE_SSL"),
		publicEndpoint: config.FirstNonEmpty(*objectPublicEndpoint, config.Env("OBJECT_PUBLIC_ENDPOINT")),
	}
	audios, err := buildObjectStore(objectOptions, audioBucketName)
	if err != nil {
		fatal(logger, "configure audio bucket", err)
	}
	images, err := buildObjectStore(objectOptions, imageBucketName)
	if err != nil {
		fatal(logger, "configure image bucket", err)
	}

	handler := api.NewHandler(
		service.NewUserService(users, images),
		service.NewAudioService(audios),
	)

	srv, err := server.New(handler, server.Config{
		Addr: config.FirstNonEmpty(*addr, config.Env("ADDR"), ":8080"),
		TLS: server.TLSConfig{
			CertFile: config.FirstNonEmpty(*tlsCert, config.Env("TLS_CERT")),
			KeyFile:  config.FirstNonEmpty(*tlsKey, config.Env("TLS_KEY")),
		},
		Logger: logging.WithComponent(logger, "http"),
	})
	if err != nil {
		fatal(logger, "build server", err)
	}

	logger.Info("server starting",
		"addr", config.FirstNonEmpty(*addr, config.Env("ADDR"), ":8080"),
		"audio_bucket", audioBucketName,
		"image_bucket", imageBucketName)
	if err := srv.Run(ctx); err != nil {
		fatal(logger, "server stopped", err)
	}
	logger.Info("server stopped")
}

type userStoreOptions struct {
	driver          string
	dsn             string
	maxConns        int
	minConns        int
	maxConnLifetime time.Duration
	maxConnIdle     time.Duration
	healthInterval  time.Duration
	connectTimeout  time.Duration
}

func buildUserRepository(ctx context.Context, opts userStoreOptions) (storage.UserRepository, error) {
	switch strings.ToLower(opts.driver) {
	case "memory":
		return storage.NewMemoryRepository(), nil
	case "postgres":
		return storage.NewPostgresRepository(ctx, opts.dsn,
			storage.WithPoolLimits(int32(opts.maxConns), int32(opts.minConns)),
			storage.WithPoolDurations(opts.maxConnLifetime, opts.maxConnIdle, opts.healthInterval),
			storage.WithConnectTimeout(opts.connectTimeout),
			storage.WithApplicationName("concha-api"),
		)
	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected postgres or memory)", opts.driver)
	}
}

type objectStoreOptions struct {
	driver         string
	endpoint       string
	region         string
	accessKey      string
	secretKey      string
	useSSL         bool
	publicEndpoint string
}

func buildObjectStore(opts objectStoreOptions, bucket string) (storage.ObjectStore, error) {
	switch strings.ToLower(opts.driver) {
	case "memory":
		return storage.NewMemoryObjectStore(opts.publicEndpoint), nil
	case "s3":
		return storage.NewObjectStore(storage.ObjectStorageConfig{
			Endpoint:       opts.endpoint,
			Region:         opts.region,
			AccessKey:      opts.accessKey,
			SecretKey:      opts.secretKey,
			Bucket:         bucket,
			UseSSL:         opts.useSSL,
			PublicEndpoint: opts.publicEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown object storage driver %q (expected s3 or memory)", opts.driver)
	}
}

// resolveBuckets prefers explicitly configured bucket names and falls back to
// the metadata file written by the provisioning tool.
func resolveBuckets(audio, image, metadataPath string) (string, string, error) {
	if audio != "" && image != "" {
		return audio, image, nil
	}
	if metadataPath == "" {
		return "", "", fmt.Errorf("audio and image buckets must be set, or a bucket-metadata file provided")
	}
	metadata, err := config.LoadBucketMetadata(metadataPath)
	if err != nil {
		return "", "", err
	}
	if audio == "" {
		audio = metadata.Buckets.Audio
	}
	if image == "" {
		image = metadata.Buckets.Image
	}
	return audio, image, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
