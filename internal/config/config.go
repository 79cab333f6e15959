package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the environment configuration shared by both dataset binaries.
// Command-line flags override individual fields per run.
type Config struct {
	DataDir     string
	HTTPTimeout time.Duration

	EmotivITARepoURL   string // GitHub contents API listing
	HODIArchiveBaseURL string
	HODIPassword       string

	ShuffleSeed    uint64
	HasShuffleSeed bool

	S3 S3Config

	DatabaseURL    string // optional run ledger
	PushgatewayURL string // optional batch metrics
}

// S3Config configures the optional upload of produced files.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // For MinIO/testing
	Prefix       string
	AWSAccessKey string
	AWSSecretKey string
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:            getEnv("DATA_DIR", "."),
		HTTPTimeout:        getDurationEnv("HTTP_TIMEOUT", 2*time.Minute),
		EmotivITARepoURL:   getEnv("EMOTIVITA_REPO_URL", "https://api.github.com/repos/GiovanniGafa/EmoITA/contents/"),
		HODIArchiveBaseURL: getEnv("HODI_ARCHIVE_BASE_URL", "https://github.com/HODI-EVALITA/HODI_2023_data/raw/main"),
		HODIPassword:       getEnv("HODI_ZIP_PASSWORD", "hodi23evalita"),
		S3: S3Config{
			Bucket:       os.Getenv("S3_BUCKET"),
			Region:       getEnv("S3_REGION", "us-east-1"),
			Endpoint:     os.Getenv("S3_ENDPOINT"),
			Prefix:       getEnv("S3_PREFIX", "datasets"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}
	cfg.ShuffleSeed, cfg.HasShuffleSeed = getUintEnv("SHUFFLE_SEED")

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getUintEnv(key string) (uint64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		log.Printf("Invalid unsigned integer for %s: %s", key, value)
		return 0, false
	}
	return v, true
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
		log.Printf("Invalid duration for %s: %s", key, value)
	}
	return fallback
}
