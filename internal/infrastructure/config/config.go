package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	usecasecontract "github.com/mikiasgoitom/articulate-engage/internal/usecase/contract"
)

// Config holds application configuration values.
type Config struct {
	Port               string
	EngagementBaseURL  string
	SubjectSource      string
	RequestTimeout     time.Duration
	RevalidationDelay  time.Duration
	ErrorFlagTTL       time.Duration
	InvalidationDelay  time.Duration
	AuthRedirectURL    string
	AccessToken        string
	OAuthClientID      string
	OAuthClientSecret  string
	OAuthTokenURL      string
	RateLimitPerSecond float64
	AllowedOrigins     []string
	LogLevel           string
	LogEncoding        string
	RedisURL           string
	MongoURI           string
	MongoDBName        string
	ViewerID           string
}

// NewConfig creates a new Config instance, loading values from environment variables.
func NewConfig() usecasecontract.IConfigProvider {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		EngagementBaseURL:  getEnv("ENGAGEMENT_BASE_URL", "http://localhost:9000/api"),
		SubjectSource:      strings.ToLower(getEnv("SUBJECT_SOURCE", "http")),
		RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		RevalidationDelay:  getEnvAsDuration("REVALIDATION_DELAY", 500*time.Millisecond),
		ErrorFlagTTL:       getEnvAsDuration("ERROR_FLAG_TTL", 3*time.Second),
		InvalidationDelay:  getEnvAsDuration("INVALIDATION_DELAY", 150*time.Millisecond),
		AuthRedirectURL:    getEnv("AUTH_REDIRECT_URL", "/login"),
		AccessToken:        getEnv("ACCESS_TOKEN", ""),
		OAuthClientID:      getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret:  getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthTokenURL:      getEnv("OAUTH_TOKEN_URL", ""),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogEncoding:        getEnv("LOG_ENCODING", "json"),
		RedisURL:           getEnv("REDIS_URL", ""),
		MongoURI:           getEnv("MONGODB_URI", ""),
		MongoDBName:        getEnv("MONGODB_DB", "articulate"),
		ViewerID:           getEnv("VIEWER_ID", ""),
	}
}

func (c *Config) GetPort() string                     { return c.Port }
func (c *Config) GetEngagementBaseURL() string        { return c.EngagementBaseURL }
func (c *Config) GetSubjectSource() string            { return c.SubjectSource }
func (c *Config) GetRequestTimeout() time.Duration    { return c.RequestTimeout }
func (c *Config) GetRevalidationDelay() time.Duration { return c.RevalidationDelay }
func (c *Config) GetErrorFlagTTL() time.Duration      { return c.ErrorFlagTTL }
func (c *Config) GetInvalidationDelay() time.Duration { return c.InvalidationDelay }
func (c *Config) GetAuthRedirectURL() string          { return c.AuthRedirectURL }

// GetAccessToken returns the seed session token; empty means the viewer starts signed out.
func (c *Config) GetAccessToken() string { return c.AccessToken }

func (c *Config) GetOAuthClientID() string     { return c.OAuthClientID }
func (c *Config) GetOAuthClientSecret() string { return c.OAuthClientSecret }
func (c *Config) GetOAuthTokenURL() string     { return c.OAuthTokenURL }

// GetRateLimitPerSecond returns the per-IP request budget of the action endpoints.
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }

func (c *Config) GetAllowedOrigins() []string { return c.AllowedOrigins }
func (c *Config) GetLogLevel() string         { return c.LogLevel }
func (c *Config) GetLogEncoding() string      { return c.LogEncoding }
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetMongoURI() string         { return c.MongoURI }
func (c *Config) GetMongoDBName() string      { return c.MongoDBName }

// GetViewerID returns the user id whose flags the Mongo source reads.
func (c *Config) GetViewerID() string { return c.ViewerID }

// Helper function to get an environment variable or return a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as a float or return a default value.
func getEnvAsFloat(name string, fallback float64) float64 {
	valueStr := getEnv(name, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

// Helper function to get an environment variable as a duration ("500ms", "3s") or return a default value.
func getEnvAsDuration(name string, fallback time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value >= 0 {
		return value
	}
	return fallback
}

// Helper function to get a comma separated environment variable or return a default value.
func getEnvAsList(name string, fallback []string) []string {
	valueStr := strings.TrimSpace(getEnv(name, ""))
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
