package transport

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// PasswordSource produces the password/token MQTTTransport presents on
// each (re)connect attempt. StaticPassword covers brokers with a fixed
// shared secret; OAuth2PasswordSource covers brokers (managed cloud MQTT)
// that authenticate via OAuth2 client-credentials instead.
type PasswordSource interface {
	Password(ctx context.Context) (string, error)
}

// StaticPassword is a PasswordSource that always returns the same value.
type StaticPassword string

func (s StaticPassword) Password(context.Context) (string, error) { return string(s), nil }

// OAuth2PasswordSource refreshes a bearer token via client-credentials and
// hands it to the broker as the connect password on every (re)connect. The
// wrapped oauth2.TokenSource caches and refreshes on its own schedule, so a
// reconnect storm does not imply a token-endpoint storm.
type OAuth2PasswordSource struct {
	ts oauth2.TokenSource
}

// NewOAuth2PasswordSource builds a PasswordSource from a client-credentials
// configuration (token URL, client id/secret, scopes).
func NewOAuth2PasswordSource(ctx context.Context, cfg clientcredentials.Config) *OAuth2PasswordSource {
	return &OAuth2PasswordSource{ts: cfg.TokenSource(ctx)}
}

func (o *OAuth2PasswordSource) Password(context.Context) (string, error) {
	tok, err := o.ts.Token()
	if err != nil {
		return "", fmt.Errorf("transport: oauth2 token: %w", err)
	}
	return tok.AccessToken, nil
}
