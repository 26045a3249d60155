// Package gateway provisions and operates the managed tool gateway: the
// authorizer → gateway → target chain, token exchange, and teardown. Every
// resource follows the same get-or-create protocol: list, match by exact
// name, reuse when found, create otherwise.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"

	"agentcore-agent/internal/domain"
	"agentcore-agent/internal/identity"
	"agentcore-agent/internal/secrets"
)

const (
	createMaxAttempts = 6
	createBaseDelay   = 2 * time.Second
)

// sleep is swapped out in tests to keep backoff loops instant.
var sleep = time.Sleep

// controlAPI is the minimal AgentCore control-plane interface required by
// Reconciler. *bedrockagentcorecontrol.Client satisfies it.
type controlAPI interface {
	ListGateways(ctx context.Context, in *bedrockagentcorecontrol.ListGatewaysInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListGatewaysOutput, error)
	GetGateway(ctx context.Context, in *bedrockagentcorecontrol.GetGatewayInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.GetGatewayOutput, error)
	CreateGateway(ctx context.Context, in *bedrockagentcorecontrol.CreateGatewayInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateGatewayOutput, error)
	DeleteGateway(ctx context.Context, in *bedrockagentcorecontrol.DeleteGatewayInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.DeleteGatewayOutput, error)
	ListGatewayTargets(ctx context.Context, in *bedrockagentcorecontrol.ListGatewayTargetsInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListGatewayTargetsOutput, error)
	CreateGatewayTarget(ctx context.Context, in *bedrockagentcorecontrol.CreateGatewayTargetInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateGatewayTargetOutput, error)
	DeleteGatewayTarget(ctx context.Context, in *bedrockagentcorecontrol.DeleteGatewayTargetInput, optFns ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.DeleteGatewayTargetOutput, error)
}

// SecretStore is the credential persistence consumed by the reconciler.
type SecretStore interface {
	Store(ctx context.Context, name, value string) error
	Get(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// identityClient is the slice of the identity bridge the reconciler uses.
type identityClient interface {
	EnsureAuthorizer(ctx context.Context, gatewayName string) (domain.AuthorizerSetup, error)
	PasswordToken(ctx context.Context, clientID, clientSecret, username, password string) (identity.TokenPair, error)
}

// Reconciler drives idempotent provisioning of the gateway resource chain.
type Reconciler struct {
	control    controlAPI
	idp        identityClient
	secrets    SecretStore
	roles      *RoleManager
	functions  *FunctionClient
	httpClient *http.Client
	region     string
	log        *slog.Logger

	locks nameLocks
}

// New creates a Reconciler. httpClient is used only for the client-credentials
// token endpoint; nil selects a default with a 10s timeout.
func New(control controlAPI, idp identityClient, store SecretStore, roles *RoleManager, functions *FunctionClient, region string, log *slog.Logger, httpClient *http.Client) (*Reconciler, error) {
	if control == nil {
		return nil, errors.New("gateway: control api must not be nil")
	}
	if idp == nil {
		return nil, errors.New("gateway: identity client must not be nil")
	}
	if store == nil {
		return nil, errors.New("gateway: secret store must not be nil")
	}
	if roles == nil {
		return nil, errors.New("gateway: role manager must not be nil")
	}
	if functions == nil {
		return nil, errors.New("gateway: function client must not be nil")
	}
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("gateway: region must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Reconciler{
		control:    control,
		idp:        idp,
		secrets:    store,
		roles:      roles,
		functions:  functions,
		httpClient: httpClient,
		region:     region,
		log:        log,
	}, nil
}

// SetupAuthorizer provisions (or reuses) the OAuth authorizer for the gateway
// and persists the client secret under the gateway's deterministic secret
// name. The returned setup feeds the gateway-creation step.
func (r *Reconciler) SetupAuthorizer(ctx context.Context, gatewayName string) (domain.AuthorizerSetup, error) {
	setup, err := r.idp.EnsureAuthorizer(ctx, gatewayName)
	if err != nil {
		return domain.AuthorizerSetup{}, fmt.Errorf("gateway: authorizer setup for %q: %w", gatewayName, err)
	}
	if setup.Client.ClientSecret != "" {
		if err := r.secrets.Store(ctx, secrets.NameForGateway(gatewayName), setup.Client.ClientSecret); err != nil {
			return domain.AuthorizerSetup{}, fmt.Errorf("gateway: persist client secret for %q: %w", gatewayName, err)
		}
	}
	return setup, nil
}

// FindGateway returns the gateway with the given name, traversing every page
// of the listing. ok is false when no gateway carries the name.
func (r *Reconciler) FindGateway(ctx context.Context, name string) (domain.GatewayInfo, bool, error) {
	var next *string
	for {
		out, err := r.control.ListGateways(ctx, &bedrockagentcorecontrol.ListGatewaysInput{
			MaxResults: aws.Int32(50),
			NextToken:  next,
		})
		if err != nil {
			return domain.GatewayInfo{}, false, fmt.Errorf("gateway: list gateways: %w", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) != name {
				continue
			}
			got, err := r.control.GetGateway(ctx, &bedrockagentcorecontrol.GetGatewayInput{
				GatewayIdentifier: item.GatewayId,
			})
			if err != nil {
				return domain.GatewayInfo{}, false, fmt.Errorf("gateway: get gateway %q: %w", aws.ToString(item.GatewayId), err)
			}
			return gatewayInfoFromGet(name, got), true, nil
		}
		if out.NextToken == nil {
			return domain.GatewayInfo{}, false, nil
		}
		next = out.NextToken
	}
}

// EnsureGateway returns the gateway with the given name, creating it when
// absent. An existing gateway is reused as-is even if its authorizer
// configuration differs from the requested one; the drift is logged, not
// reconciled. Creation retries only on execution-identity propagation delay.
func (r *Reconciler) EnsureGateway(ctx context.Context, name string, authz domain.AuthorizerConfig) (domain.GatewayInfo, error) {
	unlock := r.locks.lock("gateway/" + name)
	defer unlock()

	existing, ok, err := r.FindGateway(ctx, name)
	if err != nil {
		return domain.GatewayInfo{}, err
	}
	if ok {
		if drift := authorizerDrift(existing.Authorizer, authz); drift != "" {
			r.log.Warn("gateway already exists with a different authorizer, reusing as-is",
				"name", name, "id", existing.ID, "drift", drift)
		} else {
			r.log.Info("gateway already exists, reusing as-is", "name", name, "id", existing.ID)
		}
		return existing, nil
	}

	if authz.DiscoveryURL == "" || len(authz.AllowedClients) == 0 {
		return domain.GatewayInfo{}, domain.ConfigError("authorizer_incomplete",
			fmt.Errorf("gateway: cannot create %q without discovery URL and allowed clients", name))
	}

	roleARN, err := r.roles.EnsureGatewayRole(ctx, name)
	if err != nil {
		return domain.GatewayInfo{}, err
	}

	in := &bedrockagentcorecontrol.CreateGatewayInput{
		Name:           aws.String(name),
		RoleArn:        aws.String(roleARN),
		ProtocolType:   types.GatewayProtocolTypeMcp,
		AuthorizerType: types.AuthorizerTypeCustomJwt,
		AuthorizerConfiguration: &types.AuthorizerConfigurationMemberCustomJWTAuthorizer{
			Value: types.CustomJWTAuthorizerConfiguration{
				DiscoveryUrl:   aws.String(authz.DiscoveryURL),
				AllowedClients: authz.AllowedClients,
			},
		},
		Description: aws.String("Tool gateway for " + name),
	}

	out, err := r.createGatewayWithRetry(ctx, in)
	if err != nil {
		return domain.GatewayInfo{}, fmt.Errorf("gateway: create gateway %q: %w", name, err)
	}

	info := domain.GatewayInfo{
		Name:   name,
		ID:     aws.ToString(out.GatewayId),
		URL:    aws.ToString(out.GatewayUrl),
		ARN:    aws.ToString(out.GatewayArn),
		Status: string(out.Status),
	}
	r.log.Info("gateway created", "name", name, "id", info.ID, "url", info.URL)
	return info, nil
}

// createGatewayWithRetry retries only the permission-denied class raised
// while the freshly created execution role propagates. Every other error
// propagates immediately.
func (r *Reconciler) createGatewayWithRetry(ctx context.Context, in *bedrockagentcorecontrol.CreateGatewayInput) (*bedrockagentcorecontrol.CreateGatewayOutput, error) {
	delay := createBaseDelay
	var lastErr error
	for attempt := 1; attempt <= createMaxAttempts; attempt++ {
		out, err := r.control.CreateGateway(ctx, in)
		if err == nil {
			return out, nil
		}
		if !isAccessDenied(err) {
			return nil, err
		}
		lastErr = err
		if attempt == createMaxAttempts {
			break
		}
		r.log.Warn("gateway create denied, waiting for role propagation",
			"attempt", attempt, "delay", delay)
		sleep(delay)
		delay *= 2
	}
	return nil, domain.NewError(domain.ErrorTransient, "role_propagation_timeout", lastErr)
}

// FindTarget returns the named target within a gateway, across all pages.
func (r *Reconciler) FindTarget(ctx context.Context, gatewayID, name string) (domain.TargetInfo, bool, error) {
	var next *string
	for {
		out, err := r.control.ListGatewayTargets(ctx, &bedrockagentcorecontrol.ListGatewayTargetsInput{
			GatewayIdentifier: aws.String(gatewayID),
			MaxResults:        aws.Int32(50),
			NextToken:         next,
		})
		if err != nil {
			return domain.TargetInfo{}, false, fmt.Errorf("gateway: list targets for %q: %w", gatewayID, err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				return domain.TargetInfo{
					Name:   name,
					ID:     aws.ToString(item.TargetId),
					Status: string(item.Status),
				}, true, nil
			}
		}
		if out.NextToken == nil {
			return domain.TargetInfo{}, false, nil
		}
		next = out.NextToken
	}
}

// EnsureLambdaTarget returns the named Lambda tool target on the gateway,
// creating it when absent. Creation without a function ARN or a tool schema
// is meaningless and fails fast.
func (r *Reconciler) EnsureLambdaTarget(ctx context.Context, gw domain.GatewayInfo, name, lambdaARN string, schema domain.ToolSchema) (domain.TargetInfo, error) {
	unlock := r.locks.lock("target/" + gw.ID + "/" + name)
	defer unlock()

	existing, ok, err := r.FindTarget(ctx, gw.ID, name)
	if err != nil {
		return domain.TargetInfo{}, err
	}
	if ok {
		r.log.Info("target already exists, reusing as-is", "gateway", gw.Name, "target", name)
		return existing, nil
	}

	if lambdaARN == "" {
		return domain.TargetInfo{}, domain.ConfigError("missing_lambda_arn",
			fmt.Errorf("gateway: cannot create target %q without a function ARN", name))
	}
	if len(schema.Tools) == 0 {
		return domain.TargetInfo{}, domain.ConfigError("missing_tool_schema",
			fmt.Errorf("gateway: cannot create target %q without a tool schema", name))
	}

	tools, err := toolDefinitions(schema)
	if err != nil {
		return domain.TargetInfo{}, fmt.Errorf("gateway: target %q: %w", name, err)
	}

	out, err := r.control.CreateGatewayTarget(ctx, &bedrockagentcorecontrol.CreateGatewayTargetInput{
		GatewayIdentifier: aws.String(gw.ID),
		Name:              aws.String(name),
		Description:       aws.String("Lambda tool target for " + gw.Name),
		TargetConfiguration: &types.TargetConfigurationMemberMcp{
			Value: &types.McpTargetConfigurationMemberLambda{
				Value: types.McpLambdaTargetConfiguration{
					LambdaArn: aws.String(lambdaARN),
					ToolSchema: &types.ToolSchemaMemberInlinePayload{
						Value: tools,
					},
				},
			},
		},
		CredentialProviderConfigurations: []types.CredentialProviderConfiguration{
			{CredentialProviderType: types.CredentialProviderTypeGatewayIamRole},
		},
	})
	if err != nil {
		return domain.TargetInfo{}, fmt.Errorf("gateway: create target %q on %q: %w", name, gw.Name, err)
	}

	info := domain.TargetInfo{
		Name:      name,
		ID:        aws.ToString(out.TargetId),
		LambdaARN: lambdaARN,
		Status:    string(out.Status),
	}
	r.log.Info("target created", "gateway", gw.Name, "target", name, "id", info.ID)
	return info, nil
}

// ClientInfoFromGateway recovers the OAuth client material for an existing
// gateway from its authorizer configuration. The client secret is not part of
// the gateway resource; callers fill it from the secret store.
func (r *Reconciler) ClientInfoFromGateway(ctx context.Context, name string) (domain.ClientInfo, error) {
	gw, ok, err := r.FindGateway(ctx, name)
	if err != nil {
		return domain.ClientInfo{}, err
	}
	if !ok {
		return domain.ClientInfo{}, domain.NotFound("gateway_missing",
			fmt.Errorf("gateway: no gateway named %q", name))
	}

	got, err := r.control.GetGateway(ctx, &bedrockagentcorecontrol.GetGatewayInput{
		GatewayIdentifier: aws.String(gw.ID),
	})
	if err != nil {
		return domain.ClientInfo{}, fmt.Errorf("gateway: get gateway %q: %w", gw.ID, err)
	}

	jwt, ok := got.AuthorizerConfiguration.(*types.AuthorizerConfigurationMemberCustomJWTAuthorizer)
	if !ok || len(jwt.Value.AllowedClients) == 0 {
		return domain.ClientInfo{}, domain.ConfigError("gateway_no_jwt_authorizer",
			fmt.Errorf("gateway: %q has no custom JWT authorizer", name))
	}

	discoveryURL := aws.ToString(jwt.Value.DiscoveryUrl)
	poolID := userPoolIDFromDiscoveryURL(discoveryURL)
	info := domain.ClientInfo{
		ClientID:     jwt.Value.AllowedClients[0],
		UserPoolID:   poolID,
		DiscoveryURL: discoveryURL,
	}
	if poolID != "" {
		info.TokenEndpoint = fmt.Sprintf("https://%s.auth.%s.amazoncognito.com/oauth2/token",
			strings.ToLower(strings.ReplaceAll(poolID, "_", "-")), r.region)
	}
	return info, nil
}

func gatewayInfoFromGet(name string, out *bedrockagentcorecontrol.GetGatewayOutput) domain.GatewayInfo {
	info := domain.GatewayInfo{
		Name:   name,
		ID:     aws.ToString(out.GatewayId),
		URL:    aws.ToString(out.GatewayUrl),
		ARN:    aws.ToString(out.GatewayArn),
		Status: string(out.Status),
	}
	if jwt, ok := out.AuthorizerConfiguration.(*types.AuthorizerConfigurationMemberCustomJWTAuthorizer); ok {
		info.Authorizer = domain.AuthorizerConfig{
			DiscoveryURL:   aws.ToString(jwt.Value.DiscoveryUrl),
			AllowedClients: jwt.Value.AllowedClients,
		}
	}
	return info
}

// authorizerDrift describes how an existing gateway's authorizer differs from
// the requested one, empty when they agree.
func authorizerDrift(existing, requested domain.AuthorizerConfig) string {
	if requested.DiscoveryURL != "" && existing.DiscoveryURL != requested.DiscoveryURL {
		return fmt.Sprintf("discovery URL %q != requested %q", existing.DiscoveryURL, requested.DiscoveryURL)
	}
	for _, want := range requested.AllowedClients {
		if !slices.Contains(existing.AllowedClients, want) {
			return fmt.Sprintf("allowed clients %v missing requested %q", existing.AllowedClients, want)
		}
	}
	return ""
}

// userPoolIDFromDiscoveryURL extracts the pool id from a Cognito discovery
// URL of the form https://cognito-idp.<region>.amazonaws.com/<pool>/...
func userPoolIDFromDiscoveryURL(u string) string {
	const marker = ".amazonaws.com/"
	i := strings.Index(u, marker)
	if i < 0 {
		return ""
	}
	rest := u[i+len(marker):]
	if j := strings.Index(rest, "/"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
