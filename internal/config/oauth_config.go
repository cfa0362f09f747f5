package config

import "strings"

const (
	clientIDVar          = "XERO_CLIENT_ID"
	clientSecretVar      = "XERO_CLIENT_SECRET"
	redirectURLVar       = "XERO_REDIRECT_URL"
	scopesVar            = "XERO_SCOPES"
	requestsPerMinuteVar = "XERO_REQUESTS_PER_MINUTE"
)

var defaultScopes = []string{
	"offline_access",
	"openid",
	"profile",
	"email",
	"accounting.transactions.read",
	"accounting.reports.read",
	"accounting.journals.read",
	"accounting.settings.read",
	"accounting.contacts.read",
	"accounting.attachments.read",
	"accounting.budgets.read",
	"assets.read",
}

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetRequestsPerMinute() int
}

func (c mainConfig) GetClientID() string {
	return c.v.GetString(clientIDVar)
}

func (c mainConfig) GetClientSecret() string {
	return c.v.GetString(clientSecretVar)
}

func (c mainConfig) GetRedirectURL() string {
	if redirect := c.v.GetString(redirectURLVar); redirect != "" {
		return redirect
	}
	return c.GetBaseURL() + "/callback"
}

func (c mainConfig) GetScopes() []string {
	return strings.Fields(strings.ReplaceAll(c.v.GetString(scopesVar), ",", " "))
}

// GetRequestsPerMinute is the client-side pacing per tenant. Zero disables pacing.
func (c mainConfig) GetRequestsPerMinute() int {
	return c.v.GetInt(requestsPerMinuteVar)
}
