package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSnapshotsSubDir  = "snapshots"
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultImagesSubDir     = "images"
	DefaultVideosSubDir     = "videos"
)

const (
	defaultThumbnailQueueSize  = 200
	defaultNumThumbnailWorkers = 2
	defaultThumbnailMaxSize    = 320

	defaultJWTTTL        = 24 * time.Hour
	defaultStreamTimeout = 30 * time.Second

	defaultConeTolerance = 0.1

	defaultRateLimitRequests = 20
	defaultRateLimitWindow   = time.Minute
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProjectionCorrected = "corrected"
	ProjectionFlat      = "flat"
)

type Config struct {
	Port string
	// public base used when building absolute snapshot and image URLs, may be empty
	PublicBaseURL string

	// database selection
	DatabaseDriver string
	DatabasePath   string // sqlite file
	DatabaseURL    string // postgres DSN

	// media storage configuration
	MediaStoragePath string // root for snapshots, thumbnails, post images and videos
	SnapshotsPath    string
	ThumbnailsPath   string
	ImagesPath       string
	VideosPath       string

	// thumbnail generation settings
	ThumbnailMaxSize int

	// worker settings
	ThumbnailQueueSize  int
	NumThumbnailWorkers int

	// auth
	JWTSecret       string
	JWTTTL          time.Duration
	StaticAPITokens []string

	// HLS origin behind the stream relay
	StreamOriginURL      string
	StreamOriginUser     string
	StreamOriginPassword string
	StreamTimeout        time.Duration
	StreamCatalogPath    string

	// vision cone geometry
	ConeProjection string
	ConeTolerance  float64

	// outbound services
	ExpoPushURL       string
	VideoProcessorURL string

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// getEnvListOrDefault splits a comma separated value, dropping empty entries
func getEnvListOrDefault(envVar string, defaultVal []string) []string {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	cfg := Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		PublicBaseURL:  strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", ""), "/"),
		DatabaseDriver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabasePath:   getEnvOrDefault("DATABASE_PATH", "straysafe.db"),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", ""),

		MediaStoragePath: absMediaStorage,
		SnapshotsPath:    filepath.Join(absMediaStorage, getEnvOrDefault("SNAPSHOTS_SUBDIR", DefaultSnapshotsSubDir)),
		ThumbnailsPath:   filepath.Join(absMediaStorage, getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)),
		ImagesPath:       filepath.Join(absMediaStorage, getEnvOrDefault("IMAGES_SUBDIR", DefaultImagesSubDir)),
		VideosPath:       filepath.Join(absMediaStorage, getEnvOrDefault("VIDEOS_SUBDIR", DefaultVideosSubDir)),

		ThumbnailMaxSize:    getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize),
		ThumbnailQueueSize:  getEnvIntOrDefault("THUMBNAIL_QUEUE_SIZE", defaultThumbnailQueueSize),
		NumThumbnailWorkers: getEnvIntOrDefault("NUM_THUMBNAIL_WORKERS", defaultNumThumbnailWorkers),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTTTL:          getEnvDurationOrDefault("JWT_TTL", defaultJWTTTL),
		StaticAPITokens: getEnvListOrDefault("STATIC_API_TOKENS", nil),

		StreamOriginURL:      strings.TrimRight(getEnvOrDefault("STREAM_ORIGIN_URL", "http://127.0.0.1:8888"), "/"),
		StreamOriginUser:     os.Getenv("STREAM_ORIGIN_USER"),
		StreamOriginPassword: os.Getenv("STREAM_ORIGIN_PASSWORD"),
		StreamTimeout:        getEnvDurationOrDefault("STREAM_TIMEOUT", defaultStreamTimeout),
		StreamCatalogPath:    getEnvOrDefault("STREAM_CATALOG_PATH", "streams.yaml"),

		ConeProjection: strings.ToLower(getEnvOrDefault("CONE_PROJECTION", ProjectionCorrected)),
		ConeTolerance:  getEnvFloatOrDefault("CONE_TOLERANCE", defaultConeTolerance),

		ExpoPushURL:       getEnvOrDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		VideoProcessorURL: strings.TrimRight(getEnvOrDefault("VIDEO_PROCESSOR_URL", "http://127.0.0.1:8000"), "/"),

		CORSAllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		RateLimitRequests: getEnvIntOrDefault("RATE_LIMIT_REQUESTS", defaultRateLimitRequests),
		RateLimitWindow:   getEnvDurationOrDefault("RATE_LIMIT_WINDOW", defaultRateLimitWindow),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER '%s' (want %s or %s)", c.DatabaseDriver, DriverSQLite, DriverPostgres)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	if c.ConeProjection != ProjectionCorrected && c.ConeProjection != ProjectionFlat {
		return fmt.Errorf("unsupported CONE_PROJECTION '%s' (want %s or %s)", c.ConeProjection, ProjectionCorrected, ProjectionFlat)
	}

	u, err := url.Parse(c.StreamOriginURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid STREAM_ORIGIN_URL '%s'", c.StreamOriginURL)
	}
	return nil
}
