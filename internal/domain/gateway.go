package domain

// GatewayInfo describes a provisioned gateway. At most one gateway exists per
// logical name within a region; once created it is never mutated, only reused
// or torn down.
type GatewayInfo struct {
	Name   string
	ID     string
	URL    string
	ARN    string
	Status string

	// Authorizer is the JWT configuration currently attached to the gateway,
	// zero when the gateway carries no custom JWT authorizer.
	Authorizer AuthorizerConfig
}

// TargetInfo describes a tool-execution backend registered on a gateway.
// Names are unique within the parent gateway.
type TargetInfo struct {
	Name      string
	ID        string
	LambdaARN string
	Status    string
}

// AuthorizerConfig is the inbound JWT validation configuration attached to a
// gateway at creation time.
type AuthorizerConfig struct {
	DiscoveryURL   string
	AllowedClients []string
}

// ClientInfo carries the OAuth client material produced by authorizer setup
// and consumed by token exchange. ClientSecret may be empty; the reconciler
// fills it from the secret store on demand.
type ClientInfo struct {
	ClientID      string
	ClientSecret  string
	UserPoolID    string
	DiscoveryURL  string
	TokenEndpoint string
	Scope         string

	// Username and Password select the password grant when both are set;
	// otherwise token exchange uses client credentials.
	Username string
	Password string
}

// AuthorizerSetup is the result of the authorizer provisioning step: the
// client material plus the configuration blob the gateway-creation step needs.
type AuthorizerSetup struct {
	Client     ClientInfo
	Authorizer AuthorizerConfig
}
