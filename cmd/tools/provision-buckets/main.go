// Command provision-buckets creates the audio and image buckets against the
// configured object storage endpoint and records their names in a
// bucket-metadata TOML file for the server to read at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"concha-api/internal/config"
	"concha-api/internal/storage"
)

func main() {
	endpoint := flag.String("object-endpoint", "", "object storage endpoint host[:port]")
	region := flag.String("object-region", "", "object storage region")
	accessKey := flag.String("object-access-key", "", "object storage access key")
	secretKey := flag.String("object-secret-key", "", "object storage secret key")
	useSSL := flag.Bool("object-use-ssl", false, "use https for object storage requests")
	audioBucket := flag.String("audio-bucket", "", "bucket name for audio session records")
	imageBucket := flag.String("image-bucket", "", "bucket name for user images")
	metadataPath := flag.String("bucket-metadata", "buckets.toml", "where to write the bucket-metadata TOML")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout for bucket provisioning")
	flag.Parse()

	resolvedEndpoint := config.FirstNonEmpty(*endpoint, config.Env("OBJECT_ENDPOINT"))
	resolvedAudio := config.FirstNonEmpty(*audioBucket, config.Env("AUDIO_BUCKET"))
	resolvedImage := config.FirstNonEmpty(*imageBucket, config.Env("IMAGE_BUCKET"))

	if resolvedEndpoint == "" {
		fatalf("--object-endpoint is required")
	}
	if strings.TrimSpace(resolvedAudio) == "" || strings.TrimSpace(resolvedImage) == "" {
		fatalf("--audio-bucket and --image-bucket are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	for _, bucket := range []string{resolvedAudio, resolvedImage} {
		store, err := storage.NewObjectStore(storage.ObjectStorageConfig{
			Endpoint:  resolvedEndpoint,
			Region:    config.FirstNonEmpty(*region, config.Env("OBJECT_REGION")),
			AccessKey: config.FirstNonEmpty(*accessKey, config.Env("OBJECT_ACCESS_KEY")),
			SecretKey: config.FirstNonEmpty(*secretKey, config.Env("OBJECT_SECRET_KEY")),
			Bucket:    bucket,
			UseSSL:    config.ResolveBool(*useSSL, "OBJECT_USE_SSL"),
		})
		if err != nil {
			fatalf("configure bucket %s: %v", bucket, err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			fatalf("provision bucket %s: %v", bucket, err)
		}
		fmt.Printf("Bucket %s ready.\n", bucket)
	}

	metadata := config.BucketMetadata{
		Buckets: config.BucketNames{Audio: resolvedAudio, Image: resolvedImage},
	}
	if err := config.WriteBucketMetadata(*metadataPath, metadata); err != nil {
		fatalf("write bucket metadata: %v", err)
	}
	fmt.Printf("Bucket metadata written to %s.\n", *metadataPath)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
