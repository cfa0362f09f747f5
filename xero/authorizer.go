package xero

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/token"
	"golang.org/x/oauth2"
)

const (
	AuthURL  = "https://login.xero.com/identity/connect/authorize"
	TokenURL = "https://identity.xero.com/connect/token"
	Issuer   = "https://identity.xero.com"
	JWKSURL  = "https://identity.xero.com/.well-known/openid-configuration/jwks"
)

// Endpoint is the provider's OAuth2 endpoint. Client credentials go in a basic auth header.
var Endpoint = oauth2.Endpoint{
	AuthURL:   AuthURL,
	TokenURL:  TokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Authorization is the outcome of a completed authorization flow.
type Authorization struct {
	User  string // email claim of the verified id_token
	Token *token.Token
}

// Authorizer runs the provider side of the authorization code flow and refreshes tokens.
type Authorizer struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	nowFunc    func() time.Time
}

type AuthorizerOption func(*Authorizer)

func WithEndpoint(e oauth2.Endpoint) AuthorizerOption {
	return func(a *Authorizer) {
		a.oauth.Endpoint = e
	}
}

// WithVerifier replaces the JWKS backed id_token verifier.
func WithVerifier(v *oidc.IDTokenVerifier) AuthorizerOption {
	return func(a *Authorizer) {
		a.verifier = v
	}
}

func WithAuthHTTPClient(c *http.Client) AuthorizerOption {
	return func(a *Authorizer) {
		a.httpClient = c
	}
}

func WithAuthNowFunc(now func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		a.nowFunc = now
	}
}

func NewAuthorizer(clientID, clientSecret, redirectURL string, scopes []string, options ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
		},
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	if a.verifier == nil {
		keySet := oidc.NewRemoteKeySet(a.clientContext(context.Background()), JWKSURL)
		a.verifier = oidc.NewVerifier(Issuer, keySet, &oidc.Config{ClientID: clientID})
	}
	return a
}

// AuthCodeURL is where the user is sent to grant access. verifier is the PKCE code verifier
// that must be presented again in Exchange.
func (a *Authorizer) AuthCodeURL(state, verifier string) string {
	return a.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange completes the flow from the full callback URL the provider redirected to.
// The state in the URL must equal state.
func (a *Authorizer) Exchange(ctx context.Context, authResponseURL, state, verifier string) (*Authorization, error) {
	u, err := url.Parse(authResponseURL)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrProtocol, "authorization response url: %v", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return nil, apperrors.Wrapf(apperrors.ErrAuthFailure, "authorization denied: %s %s", e, q.Get("error_description"))
	}
	if q.Get("state") != state {
		return nil, apperrors.ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return nil, apperrors.Wrapf(apperrors.ErrProtocol, "authorization response without code")
	}

	issuedAt := a.nowFunc()
	raw, err := a.oauth.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrAuthFailure, "code exchange: %v", err)
	}
	tok := token.FromOAuth2(raw, issuedAt)

	user, err := a.UserEmail(ctx, tok.IDToken)
	if err != nil {
		return nil, err
	}
	return &Authorization{User: user, Token: tok}, nil
}

// UserEmail verifies the id_token's signature, issuer and audience and returns its email claim.
func (a *Authorizer) UserEmail(ctx context.Context, rawIDToken string) (string, error) {
	if rawIDToken == "" {
		return "", apperrors.Wrapf(apperrors.ErrProtocol, "token response without id_token")
	}
	idToken, err := a.verifier.Verify(a.clientContext(ctx), rawIDToken)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrAuthFailure, "id_token verification failed: %v", err)
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", apperrors.Wrapf(apperrors.ErrProtocol, "id_token claims: %v", err)
	}
	if claims.Email == "" {
		return "", apperrors.Wrapf(apperrors.ErrProtocol, "id_token has no email claim")
	}
	return claims.Email, nil
}

// Refresh spends current's refresh token at the token endpoint.
func (a *Authorizer) Refresh(ctx context.Context, current *token.Token) (*token.Token, error) {
	issuedAt := a.nowFunc()
	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	raw, err := src.Token()
	if err != nil {
		return nil, err
	}
	fresh := token.FromOAuth2(raw, issuedAt)
	if fresh.Scope == "" {
		fresh.Scope = current.Scope
	}
	return fresh, nil
}

func (a *Authorizer) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}
