package config

import "time"

const (
	encryptionKeyVar     = "TOKEN_ENCRYPTION_KEY"
	tokenCacheEnabledVar = "TOKEN_CACHE_ENABLED"
	adminAPIKeyVar       = "ADMIN_API_KEY"
	authStateTTLVar      = "AUTH_STATE_TTL"
)

type SecurityConfig interface {
	GetEncryptionKey() string
	GetTokenCacheEnabled() bool
	GetAdminAPIKey() string
	GetAuthStateTTL() time.Duration
}

// GetEncryptionKey returns the base64url encoded 32 byte key used to encrypt stored tokens.
func (c mainConfig) GetEncryptionKey() string {
	return c.v.GetString(encryptionKeyVar)
}

func (c mainConfig) GetTokenCacheEnabled() bool {
	return c.v.GetBool(tokenCacheEnabledVar)
}

// GetAdminAPIKey protects the admin routes. Empty leaves them open (DEV only).
func (c mainConfig) GetAdminAPIKey() string {
	return c.v.GetString(adminAPIKeyVar)
}

func (c mainConfig) GetAuthStateTTL() time.Duration {
	return c.v.GetDuration(authStateTTLVar)
}
