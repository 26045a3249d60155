package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"agentcore-agent/internal/domain"
	"agentcore-agent/internal/secrets"
)

// tokenResponse is the minimal shape returned by the OAuth token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken performs a live token exchange for the gateway's client. The
// missing secret component is looked up in the secret store when the supplied
// client info does not carry it. No caching: every call is a round trip.
//
// Username and password on the client select the password grant; otherwise
// the client-credentials grant runs against the provider's token endpoint.
func (r *Reconciler) AccessToken(ctx context.Context, gatewayName string, client domain.ClientInfo) (string, error) {
	if client.ClientID == "" {
		return "", domain.ConfigError("missing_client_id",
			errors.New("gateway: token exchange requires a client id"))
	}

	if client.ClientSecret == "" {
		secret, err := r.secrets.Get(ctx, secrets.NameForGateway(gatewayName))
		if err != nil {
			return "", fmt.Errorf("gateway: resolve client secret for %q: %w", gatewayName, err)
		}
		client.ClientSecret = secret
	}

	if client.Username != "" && client.Password != "" {
		pair, err := r.idp.PasswordToken(ctx, client.ClientID, client.ClientSecret, client.Username, client.Password)
		if err != nil {
			return "", err
		}
		return pair.AccessToken, nil
	}

	return r.clientCredentialsToken(ctx, client)
}

// clientCredentialsToken posts the client-credentials grant to the provider's
// token endpoint.
func (r *Reconciler) clientCredentialsToken(ctx context.Context, client domain.ClientInfo) (string, error) {
	if client.TokenEndpoint == "" {
		return "", domain.ConfigError("missing_token_endpoint",
			errors.New("gateway: client-credentials exchange requires a token endpoint"))
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if client.Scope != "" {
		form.Set("scope", client.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("gateway: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ClientID, client.ClientSecret)

	res, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: token request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gateway: read token response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", domain.AuthError("token_endpoint_rejected",
			fmt.Errorf("gateway: token endpoint returned %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("gateway: decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", domain.AuthError("token_missing", errors.New("gateway: token response has no access token"))
	}
	return payload.AccessToken, nil
}
