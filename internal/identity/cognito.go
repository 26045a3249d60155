package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"agentcore-agent/internal/domain"
)

// cognitoAPI is the minimal Cognito IDP interface required by Client.
// *cognitoidentityprovider.Client satisfies it.
type cognitoAPI interface {
	AdminCreateUser(ctx context.Context, in *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, in *cognitoidentityprovider.AdminSetUserPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminSetUserPasswordOutput, error)
	UpdateUserPoolClient(ctx context.Context, in *cognitoidentityprovider.UpdateUserPoolClientInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.UpdateUserPoolClientOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	ListUserPools(ctx context.Context, in *cognitoidentityprovider.ListUserPoolsInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUserPoolsOutput, error)
	CreateUserPool(ctx context.Context, in *cognitoidentityprovider.CreateUserPoolInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateUserPoolOutput, error)
	CreateUserPoolClient(ctx context.Context, in *cognitoidentityprovider.CreateUserPoolClientInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateUserPoolClientOutput, error)
	ListUserPoolClients(ctx context.Context, in *cognitoidentityprovider.ListUserPoolClientsInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUserPoolClientsOutput, error)
	DescribeUserPoolClient(ctx context.Context, in *cognitoidentityprovider.DescribeUserPoolClientInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DescribeUserPoolClientOutput, error)
	CreateResourceServer(ctx context.Context, in *cognitoidentityprovider.CreateResourceServerInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateResourceServerOutput, error)
	CreateUserPoolDomain(ctx context.Context, in *cognitoidentityprovider.CreateUserPoolDomainInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.CreateUserPoolDomainOutput, error)
}

// TokenPair is the result of a successful password-grant exchange.
type TokenPair struct {
	AccessToken string
	IDToken     string
}

// Client wraps the Cognito IDP API for user-pool provisioning and token
// issuance.
type Client struct {
	api    cognitoAPI
	region string
	log    *slog.Logger
}

// NewClient creates a Client. region is used to assemble the discovery and
// token endpoint URLs.
func NewClient(api cognitoAPI, region string, log *slog.Logger) (*Client, error) {
	if api == nil {
		return nil, errors.New("identity: api must not be nil")
	}
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("identity: region must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: api, region: region, log: log}, nil
}

// EnsureUser creates the user if absent and sets a permanent password. An
// already-existing user is the expected reuse path; a password that cannot be
// set (already permanent) is only logged.
func (c *Client) EnsureUser(ctx context.Context, userPoolID, username, password, email string) error {
	_, err := c.api.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId: aws.String(userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
		MessageAction: types.MessageActionTypeSuppress,
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("identity: create user %q: %w", username, err)
		}
		c.log.Info("user already exists", "username", username)
	} else {
		c.log.Info("created user", "username", username)
	}

	_, err = c.api.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
		UserPoolId: aws.String(userPoolID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		c.log.Warn("could not set password, may already be permanent", "username", username, "err", err)
	}
	return nil
}

// EnableUserPasswordAuth switches the app client to allow the password grant.
// Failure is non-fatal: the client may already carry the flows.
func (c *Client) EnableUserPasswordAuth(ctx context.Context, userPoolID, clientID string) {
	_, err := c.api.UpdateUserPoolClient(ctx, &cognitoidentityprovider.UpdateUserPoolClientInput{
		UserPoolId: aws.String(userPoolID),
		ClientId:   aws.String(clientID),
		ExplicitAuthFlows: []types.ExplicitAuthFlowsType{
			types.ExplicitAuthFlowsTypeAllowUserPasswordAuth,
			types.ExplicitAuthFlowsTypeAllowRefreshTokenAuth,
		},
	})
	if err != nil {
		c.log.Warn("could not update user pool client auth flows", "client_id", clientID, "err", err)
		return
	}
	c.log.Info("user pool client updated for password auth", "client_id", clientID)
}

// PasswordToken performs the USER_PASSWORD_AUTH exchange. Authentication
// failures are returned unmodified under the authentication error class and
// are never retried here.
func (c *Client) PasswordToken(ctx context.Context, clientID, clientSecret, username, password string) (TokenPair, error) {
	secretHash := ComputeSecretHash(clientID, clientSecret, username)

	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME":    username,
			"PASSWORD":    password,
			"SECRET_HASH": secretHash,
		},
	})
	if err != nil {
		return TokenPair{}, domain.AuthError("cognito_auth_failed", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == nil {
		return TokenPair{}, domain.AuthError("cognito_no_tokens", errors.New("identity: authentication result missing tokens"))
	}
	return TokenPair{
		AccessToken: aws.ToString(out.AuthenticationResult.AccessToken),
		IDToken:     aws.ToString(out.AuthenticationResult.IdToken),
	}, nil
}

// EnsureAuthorizer provisions (or reuses) the OAuth authorizer backing a
// gateway: a user pool named for the gateway, a resource server with an
// invoke scope, a hosted domain for the token endpoint, and an app client
// with a generated secret. The returned setup carries both the client
// material and the authorizer configuration the gateway-creation step needs.
func (c *Client) EnsureAuthorizer(ctx context.Context, gatewayName string) (domain.AuthorizerSetup, error) {
	poolName := "agentcore-" + strings.ToLower(gatewayName)
	clientName := poolName + "-client"
	resourceServerID := strings.ToLower(gatewayName)

	poolID, err := c.ensureUserPool(ctx, poolName)
	if err != nil {
		return domain.AuthorizerSetup{}, err
	}

	// Resource server and domain creation are tolerant of prior runs; both
	// fail on re-create and the existing resources are what we want anyway.
	if _, err := c.api.CreateResourceServer(ctx, &cognitoidentityprovider.CreateResourceServerInput{
		UserPoolId: aws.String(poolID),
		Identifier: aws.String(resourceServerID),
		Name:       aws.String(gatewayName),
		Scopes: []types.ResourceServerScopeType{
			{
				ScopeName:        aws.String("invoke"),
				ScopeDescription: aws.String("Invoke gateway tools"),
			},
		},
	}); err != nil {
		c.log.Warn("resource server create skipped", "identifier", resourceServerID, "err", err)
	}

	domainPrefix := domainPrefixForPool(poolID)
	if _, err := c.api.CreateUserPoolDomain(ctx, &cognitoidentityprovider.CreateUserPoolDomainInput{
		Domain:     aws.String(domainPrefix),
		UserPoolId: aws.String(poolID),
	}); err != nil {
		c.log.Warn("user pool domain create skipped", "domain", domainPrefix, "err", err)
	}

	scope := resourceServerID + "/invoke"
	clientID, clientSecret, err := c.ensureAppClient(ctx, poolID, clientName, scope)
	if err != nil {
		return domain.AuthorizerSetup{}, err
	}

	discoveryURL := fmt.Sprintf(
		"https://cognito-idp.%s.amazonaws.com/%s/.well-known/openid-configuration",
		c.region, poolID,
	)
	tokenEndpoint := fmt.Sprintf("https://%s.auth.%s.amazoncognito.com/oauth2/token", domainPrefix, c.region)

	return domain.AuthorizerSetup{
		Client: domain.ClientInfo{
			ClientID:      clientID,
			ClientSecret:  clientSecret,
			UserPoolID:    poolID,
			DiscoveryURL:  discoveryURL,
			TokenEndpoint: tokenEndpoint,
			Scope:         scope,
		},
		Authorizer: domain.AuthorizerConfig{
			DiscoveryURL:   discoveryURL,
			AllowedClients: []string{clientID},
		},
	}, nil
}

// ensureUserPool finds a user pool by exact name across all pages, creating
// it when absent.
func (c *Client) ensureUserPool(ctx context.Context, poolName string) (string, error) {
	var next *string
	for {
		out, err := c.api.ListUserPools(ctx, &cognitoidentityprovider.ListUserPoolsInput{
			MaxResults: aws.Int32(60),
			NextToken:  next,
		})
		if err != nil {
			return "", fmt.Errorf("identity: list user pools: %w", err)
		}
		for _, pool := range out.UserPools {
			if aws.ToString(pool.Name) == poolName {
				id := aws.ToString(pool.Id)
				c.log.Info("found existing user pool", "name", poolName, "id", id)
				return id, nil
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	out, err := c.api.CreateUserPool(ctx, &cognitoidentityprovider.CreateUserPoolInput{
		PoolName: aws.String(poolName),
	})
	if err != nil {
		return "", fmt.Errorf("identity: create user pool %q: %w", poolName, err)
	}
	if out.UserPool == nil || out.UserPool.Id == nil {
		return "", errors.New("identity: create user pool returned no id")
	}
	id := aws.ToString(out.UserPool.Id)
	c.log.Info("created user pool", "name", poolName, "id", id)
	return id, nil
}

// ensureAppClient finds an app client by exact name, creating one with a
// generated secret when absent. The secret is only returned by Cognito on
// describe/create, never on list.
func (c *Client) ensureAppClient(ctx context.Context, poolID, clientName, scope string) (string, string, error) {
	var next *string
	for {
		out, err := c.api.ListUserPoolClients(ctx, &cognitoidentityprovider.ListUserPoolClientsInput{
			UserPoolId: aws.String(poolID),
			MaxResults: aws.Int32(60),
			NextToken:  next,
		})
		if err != nil {
			return "", "", fmt.Errorf("identity: list user pool clients: %w", err)
		}
		for _, pc := range out.UserPoolClients {
			if aws.ToString(pc.ClientName) != clientName {
				continue
			}
			desc, err := c.api.DescribeUserPoolClient(ctx, &cognitoidentityprovider.DescribeUserPoolClientInput{
				UserPoolId: aws.String(poolID),
				ClientId:   pc.ClientId,
			})
			if err != nil {
				return "", "", fmt.Errorf("identity: describe user pool client: %w", err)
			}
			if desc.UserPoolClient == nil {
				return "", "", errors.New("identity: describe user pool client returned nothing")
			}
			c.log.Info("found existing app client", "name", clientName)
			return aws.ToString(desc.UserPoolClient.ClientId), aws.ToString(desc.UserPoolClient.ClientSecret), nil
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	out, err := c.api.CreateUserPoolClient(ctx, &cognitoidentityprovider.CreateUserPoolClientInput{
		UserPoolId:     aws.String(poolID),
		ClientName:     aws.String(clientName),
		GenerateSecret: true,
		ExplicitAuthFlows: []types.ExplicitAuthFlowsType{
			types.ExplicitAuthFlowsTypeAllowUserPasswordAuth,
			types.ExplicitAuthFlowsTypeAllowRefreshTokenAuth,
		},
		// Cognito rejects OAuth flows/scopes unless this flag is set.
		AllowedOAuthFlowsUserPoolClient: true,
		AllowedOAuthFlows:               []types.OAuthFlowType{types.OAuthFlowTypeClientCredentials},
		AllowedOAuthScopes:              []string{scope},
	})
	if err != nil {
		return "", "", fmt.Errorf("identity: create user pool client %q: %w", clientName, err)
	}
	if out.UserPoolClient == nil || out.UserPoolClient.ClientId == nil {
		return "", "", errors.New("identity: create user pool client returned no id")
	}
	c.log.Info("created app client", "name", clientName)
	return aws.ToString(out.UserPoolClient.ClientId), aws.ToString(out.UserPoolClient.ClientSecret), nil
}

// domainPrefixForPool derives a hosted-domain prefix from a pool id, which
// contains an underscore the domain syntax does not allow.
func domainPrefixForPool(poolID string) string {
	return strings.ToLower(strings.ReplaceAll(poolID, "_", "-"))
}
