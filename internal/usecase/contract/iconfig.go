package usecasecontract

import "time"

// IConfigProvider exposes runtime configuration.
type IConfigProvider interface {
	GetPort() string
	GetEngagementBaseURL() string
	GetSubjectSource() string
	GetRequestTimeout() time.Duration
	GetRevalidationDelay() time.Duration
	GetErrorFlagTTL() time.Duration
	GetInvalidationDelay() time.Duration
	GetAuthRedirectURL() string
	GetAccessToken() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
	GetOAuthTokenURL() string
	GetRateLimitPerSecond() float64
	GetAllowedOrigins() []string
	GetLogLevel() string
	GetLogEncoding() string
	GetRedisURL() string
	GetMongoURI() string
	GetMongoDBName() string
	GetViewerID() string
}
