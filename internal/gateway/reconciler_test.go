package gateway

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"agentcore-agent/internal/domain"
	"agentcore-agent/internal/identity"
)

// ---- fakes ----

type fakeControl struct {
	gateways []types.GatewaySummary
	// paginate serves one gateway summary per page instead of a single page.
	paginate  bool
	listErr   error
	listCalls int

	getOut *bedrockagentcorecontrol.GetGatewayOutput
	getErr error

	// createErrs is consumed one element per CreateGateway call; a nil entry
	// (or an exhausted slice) means success.
	createErrs  []error
	createCalls int
	lastCreate  *bedrockagentcorecontrol.CreateGatewayInput

	targets          []types.TargetSummary
	listTargetsErr   error
	createTargetErr  error
	lastCreateTarget *bedrockagentcorecontrol.CreateGatewayTargetInput

	deletedTargets   []string
	deleteTargetErr  error
	deletedGateways  []string
	deleteGatewayErr error
}

func (f *fakeControl) ListGateways(_ context.Context, in *bedrockagentcorecontrol.ListGatewaysInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListGatewaysOutput, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if !f.paginate {
		return &bedrockagentcorecontrol.ListGatewaysOutput{Items: f.gateways}, nil
	}
	idx := 0
	if in.NextToken != nil {
		idx, _ = strconv.Atoi(*in.NextToken)
	}
	out := &bedrockagentcorecontrol.ListGatewaysOutput{}
	if idx < len(f.gateways) {
		out.Items = []types.GatewaySummary{f.gateways[idx]}
	}
	if idx+1 < len(f.gateways) {
		out.NextToken = aws.String(strconv.Itoa(idx + 1))
	}
	return out, nil
}

func (f *fakeControl) GetGateway(_ context.Context, _ *bedrockagentcorecontrol.GetGatewayInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.GetGatewayOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeControl) CreateGateway(_ context.Context, in *bedrockagentcorecontrol.CreateGatewayInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateGatewayOutput, error) {
	f.lastCreate = in
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	// Register the created gateway so later lookups find it.
	f.gateways = append(f.gateways, types.GatewaySummary{GatewayId: aws.String("gw-1"), Name: in.Name})
	if f.getOut == nil {
		out := getGatewayOutput("gw-1")
		out.AuthorizerConfiguration = in.AuthorizerConfiguration
		f.getOut = out
	}
	return &bedrockagentcorecontrol.CreateGatewayOutput{
		GatewayId:  aws.String("gw-1"),
		GatewayUrl: aws.String("https://gw-1.example.com/mcp"),
		GatewayArn: aws.String("arn:aws:bedrock-agentcore:eu-central-1:123:gateway/gw-1"),
		Status:     types.GatewayStatus("READY"),
	}, nil
}

func (f *fakeControl) DeleteGateway(_ context.Context, in *bedrockagentcorecontrol.DeleteGatewayInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.DeleteGatewayOutput, error) {
	if f.deleteGatewayErr != nil {
		return nil, f.deleteGatewayErr
	}
	f.deletedGateways = append(f.deletedGateways, aws.ToString(in.GatewayIdentifier))
	return &bedrockagentcorecontrol.DeleteGatewayOutput{}, nil
}

func (f *fakeControl) ListGatewayTargets(_ context.Context, _ *bedrockagentcorecontrol.ListGatewayTargetsInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.ListGatewayTargetsOutput, error) {
	if f.listTargetsErr != nil {
		return nil, f.listTargetsErr
	}
	return &bedrockagentcorecontrol.ListGatewayTargetsOutput{Items: f.targets}, nil
}

func (f *fakeControl) CreateGatewayTarget(_ context.Context, in *bedrockagentcorecontrol.CreateGatewayTargetInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.CreateGatewayTargetOutput, error) {
	f.lastCreateTarget = in
	if f.createTargetErr != nil {
		return nil, f.createTargetErr
	}
	return &bedrockagentcorecontrol.CreateGatewayTargetOutput{
		TargetId: aws.String("tgt-1"),
		Status:   types.TargetStatus("READY"),
	}, nil
}

func (f *fakeControl) DeleteGatewayTarget(_ context.Context, in *bedrockagentcorecontrol.DeleteGatewayTargetInput, _ ...func(*bedrockagentcorecontrol.Options)) (*bedrockagentcorecontrol.DeleteGatewayTargetOutput, error) {
	if f.deleteTargetErr != nil {
		return nil, f.deleteTargetErr
	}
	f.deletedTargets = append(f.deletedTargets, aws.ToString(in.TargetId))
	return &bedrockagentcorecontrol.DeleteGatewayTargetOutput{}, nil
}

type fakeSecretStore struct {
	values    map[string]string
	storeErr  error
	getErr    error
	deleteErr error
	deleted   []string
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{values: map[string]string{}}
}

func (f *fakeSecretStore) Store(_ context.Context, name, value string) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.values[name] = value
	return nil
}

func (f *fakeSecretStore) Get(_ context.Context, name string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[name]
	if !ok {
		return "", domain.NotFound("secret_missing", errors.New("no such secret"))
	}
	return v, nil
}

func (f *fakeSecretStore) Delete(_ context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeIDP struct {
	setup     domain.AuthorizerSetup
	setupErr  error
	tokenPair identity.TokenPair
	tokenErr  error
	lastUser  string
}

func (f *fakeIDP) EnsureAuthorizer(_ context.Context, _ string) (domain.AuthorizerSetup, error) {
	return f.setup, f.setupErr
}

func (f *fakeIDP) PasswordToken(_ context.Context, _, _, username, _ string) (identity.TokenPair, error) {
	f.lastUser = username
	return f.tokenPair, f.tokenErr
}

type fakeIAM struct {
	getRoleOut *iam.GetRoleOutput
	getRoleErr error
	createErr  error
	putErr     error
	created    bool

	inlinePolicies    []string
	listInlineErr     error
	attachedPolicies  []iamtypes.AttachedPolicy
	deletedInline     []string
	detached          []string
	deletedRoles      []string
	deleteRoleErr     error
	deleteInlineErr   error
	listAttachedErr   error
	detachPolicyError error
}

func (f *fakeIAM) GetRole(_ context.Context, _ *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return f.getRoleOut, f.getRoleErr
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = true
	return &iam.CreateRoleOutput{
		Role: &iamtypes.Role{Arn: aws.String("arn:aws:iam::123:role/" + aws.ToString(in.RoleName))},
	}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, _ *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	return &iam.PutRolePolicyOutput{}, f.putErr
}

func (f *fakeIAM) ListRolePolicies(_ context.Context, _ *iam.ListRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error) {
	if f.listInlineErr != nil {
		return nil, f.listInlineErr
	}
	return &iam.ListRolePoliciesOutput{PolicyNames: f.inlinePolicies}, nil
}

func (f *fakeIAM) DeleteRolePolicy(_ context.Context, in *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	if f.deleteInlineErr != nil {
		return nil, f.deleteInlineErr
	}
	f.deletedInline = append(f.deletedInline, aws.ToString(in.PolicyName))
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) ListAttachedRolePolicies(_ context.Context, _ *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	if f.listAttachedErr != nil {
		return nil, f.listAttachedErr
	}
	return &iam.ListAttachedRolePoliciesOutput{AttachedPolicies: f.attachedPolicies}, nil
}

func (f *fakeIAM) DetachRolePolicy(_ context.Context, in *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	if f.detachPolicyError != nil {
		return nil, f.detachPolicyError
	}
	f.detached = append(f.detached, aws.ToString(in.PolicyArn))
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	if f.deleteRoleErr != nil {
		return nil, f.deleteRoleErr
	}
	f.deletedRoles = append(f.deletedRoles, aws.ToString(in.RoleName))
	return &iam.DeleteRoleOutput{}, nil
}

type fakeLambda struct {
	getOut     *awslambda.GetFunctionOutput
	getErr     error
	deleteErr  error
	deleted    []string
	deleteseen bool
}

func (f *fakeLambda) GetFunction(_ context.Context, _ *awslambda.GetFunctionInput, _ ...func(*awslambda.Options)) (*awslambda.GetFunctionOutput, error) {
	return f.getOut, f.getErr
}

func (f *fakeLambda) DeleteFunction(_ context.Context, in *awslambda.DeleteFunctionInput, _ ...func(*awslambda.Options)) (*awslambda.DeleteFunctionOutput, error) {
	f.deleteseen = true
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.FunctionName))
	return &awslambda.DeleteFunctionOutput{}, nil
}

// ---- helpers ----

func accessDenied() error {
	return &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not yet propagated"}
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "gone"}
}

func gatewaySummary(id, name string) types.GatewaySummary {
	return types.GatewaySummary{GatewayId: aws.String(id), Name: aws.String(name)}
}

func getGatewayOutput(id string) *bedrockagentcorecontrol.GetGatewayOutput {
	return &bedrockagentcorecontrol.GetGatewayOutput{
		GatewayId:  aws.String(id),
		GatewayUrl: aws.String("https://" + id + ".example.com/mcp"),
		GatewayArn: aws.String("arn:aws:bedrock-agentcore:eu-central-1:123:gateway/" + id),
		Status:     types.GatewayStatus("READY"),
	}
}

func validAuthorizer() domain.AuthorizerConfig {
	return domain.AuthorizerConfig{
		DiscoveryURL:   "https://cognito-idp.eu-central-1.amazonaws.com/eu-central-1_Abc123/.well-known/openid-configuration",
		AllowedClients: []string{"client-1"},
	}
}

func calculatorSchema(t *testing.T) domain.ToolSchema {
	t.Helper()
	schema, err := domain.ParseToolSchema([]byte(`{
		"tools": [{
			"name": "calculator",
			"description": "Evaluates a mathematical expression.",
			"input_schema": {
				"type": "object",
				"properties": {
					"expression": {"type": "string", "description": "Expression to evaluate"}
				},
				"required": ["expression"]
			}
		}]
	}`))
	require.NoError(t, err)
	return schema
}

type testReconciler struct {
	*Reconciler
	control *fakeControl
	store   *fakeSecretStore
	idp     *fakeIDP
	iam     *fakeIAM
	lam     *fakeLambda
}

func newTestReconciler(t *testing.T, control *fakeControl) *testReconciler {
	t.Helper()
	iamFake := &fakeIAM{
		getRoleOut: &iam.GetRoleOutput{
			Role: &iamtypes.Role{Arn: aws.String("arn:aws:iam::123:role/Existing")},
		},
	}
	lamFake := &fakeLambda{
		getOut: &awslambda.GetFunctionOutput{
			Configuration: &lambdatypes.FunctionConfiguration{
				FunctionArn: aws.String("arn:aws:lambda:eu-central-1:123:function:tools"),
			},
		},
	}
	roles, err := NewRoleManager(iamFake, nil)
	require.NoError(t, err)
	functions, err := NewFunctionClient(lamFake, nil)
	require.NoError(t, err)

	store := newFakeSecretStore()
	idp := &fakeIDP{}
	r, err := New(control, idp, store, roles, functions, "eu-central-1", nil, nil)
	require.NoError(t, err)
	return &testReconciler{Reconciler: r, control: control, store: store, idp: idp, iam: iamFake, lam: lamFake}
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = orig })
}

// ---- tests ----

func TestNew_ValidatesDependencies(t *testing.T) {
	roles, err := NewRoleManager(&fakeIAM{}, nil)
	require.NoError(t, err)
	functions, err := NewFunctionClient(&fakeLambda{}, nil)
	require.NoError(t, err)

	_, err = New(nil, &fakeIDP{}, newFakeSecretStore(), roles, functions, "eu-central-1", nil, nil)
	require.Error(t, err)

	_, err = New(&fakeControl{}, nil, newFakeSecretStore(), roles, functions, "eu-central-1", nil, nil)
	require.Error(t, err)

	_, err = New(&fakeControl{}, &fakeIDP{}, nil, roles, functions, "eu-central-1", nil, nil)
	require.Error(t, err)

	_, err = New(&fakeControl{}, &fakeIDP{}, newFakeSecretStore(), nil, functions, "eu-central-1", nil, nil)
	require.Error(t, err)

	_, err = New(&fakeControl{}, &fakeIDP{}, newFakeSecretStore(), roles, nil, "eu-central-1", nil, nil)
	require.Error(t, err)

	_, err = New(&fakeControl{}, &fakeIDP{}, newFakeSecretStore(), roles, functions, " ", nil, nil)
	require.Error(t, err)
}

func TestSetupAuthorizer_PersistsClientSecret(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})
	r.idp.setup = domain.AuthorizerSetup{
		Client:     domain.ClientInfo{ClientID: "client-1", ClientSecret: "s3cret"},
		Authorizer: validAuthorizer(),
	}

	setup, err := r.SetupAuthorizer(context.Background(), "AgentGateway")
	require.NoError(t, err)
	require.Equal(t, "client-1", setup.Client.ClientID)
	require.Equal(t, "s3cret", r.store.values["gateway-agentgateway-client-secret"])
}

func TestSetupAuthorizer_NoSecretNothingStored(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})
	r.idp.setup = domain.AuthorizerSetup{
		Client:     domain.ClientInfo{ClientID: "client-1"},
		Authorizer: validAuthorizer(),
	}

	_, err := r.SetupAuthorizer(context.Background(), "AgentGateway")
	require.NoError(t, err)
	require.Empty(t, r.store.values)
}

func TestSetupAuthorizer_IdPError(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})
	r.idp.setupErr = errors.New("cognito unavailable")

	_, err := r.SetupAuthorizer(context.Background(), "AgentGateway")
	require.Error(t, err)
	require.Contains(t, err.Error(), "authorizer setup")
}

func TestFindGateway_TraversesAllPages(t *testing.T) {
	control := &fakeControl{
		paginate: true,
		gateways: []types.GatewaySummary{
			gatewaySummary("gw-a", "OtherGateway"),
			gatewaySummary("gw-b", "AnotherGateway"),
			gatewaySummary("gw-c", "AgentGateway"),
		},
		getOut: getGatewayOutput("gw-c"),
	}
	r := newTestReconciler(t, control)

	gw, ok, err := r.FindGateway(context.Background(), "AgentGateway")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "gw-c", gw.ID)
	require.Equal(t, 3, control.listCalls)
}

func TestFindGateway_Absent(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, ok, err := r.FindGateway(context.Background(), "AgentGateway")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnsureGateway_ReusesExisting(t *testing.T) {
	control := &fakeControl{
		gateways: []types.GatewaySummary{gatewaySummary("gw-1", "AgentGateway")},
		getOut:   getGatewayOutput("gw-1"),
	}
	r := newTestReconciler(t, control)

	gw, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	require.Equal(t, "gw-1", gw.ID)
	require.Zero(t, control.createCalls)
}

func TestEnsureGateway_CreatesWhenAbsent(t *testing.T) {
	control := &fakeControl{}
	r := newTestReconciler(t, control)

	gw, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	require.Equal(t, "gw-1", gw.ID)
	require.Equal(t, "https://gw-1.example.com/mcp", gw.URL)
	require.Equal(t, 1, control.createCalls)

	jwt, ok := control.lastCreate.AuthorizerConfiguration.(*types.AuthorizerConfigurationMemberCustomJWTAuthorizer)
	require.True(t, ok)
	require.Equal(t, []string{"client-1"}, jwt.Value.AllowedClients)
	require.Equal(t, types.GatewayProtocolTypeMcp, control.lastCreate.ProtocolType)
}

func TestEnsureGateway_SecondCallReturnsSameGateway(t *testing.T) {
	control := &fakeControl{}
	r := newTestReconciler(t, control)

	first, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	second, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, control.createCalls)
}

func TestEnsureGateway_AuthorizerDriftIsWarnedAndReused(t *testing.T) {
	out := getGatewayOutput("gw-1")
	out.AuthorizerConfiguration = &types.AuthorizerConfigurationMemberCustomJWTAuthorizer{
		Value: types.CustomJWTAuthorizerConfiguration{
			DiscoveryUrl:   aws.String("https://cognito-idp.eu-central-1.amazonaws.com/eu-central-1_Other/.well-known/openid-configuration"),
			AllowedClients: []string{"someone-else"},
		},
	}
	control := &fakeControl{
		gateways: []types.GatewaySummary{gatewaySummary("gw-1", "AgentGateway")},
		getOut:   out,
	}

	var buf bytes.Buffer
	roles, err := NewRoleManager(&fakeIAM{}, nil)
	require.NoError(t, err)
	functions, err := NewFunctionClient(&fakeLambda{}, nil)
	require.NoError(t, err)
	r, err := New(control, &fakeIDP{}, newFakeSecretStore(), roles, functions, "eu-central-1",
		slog.New(slog.NewTextHandler(&buf, nil)), nil)
	require.NoError(t, err)

	gw, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	require.Equal(t, "gw-1", gw.ID)
	require.Zero(t, control.createCalls)
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "different authorizer")
}

func TestAuthorizerDrift(t *testing.T) {
	same := validAuthorizer()
	require.Empty(t, authorizerDrift(same, same))

	require.Contains(t,
		authorizerDrift(domain.AuthorizerConfig{DiscoveryURL: "https://other"}, same),
		"discovery URL")

	requested := validAuthorizer()
	requested.AllowedClients = []string{"client-2"}
	require.Contains(t, authorizerDrift(same, requested), "client-2")
}

func TestEnsureGateway_IncompleteAuthorizer(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, err := r.EnsureGateway(context.Background(), "AgentGateway", domain.AuthorizerConfig{})
	require.Error(t, err)
	require.True(t, domain.IsConfiguration(err))
	require.Zero(t, r.control.createCalls)
}

func TestEnsureGateway_RetriesOnAccessDenied(t *testing.T) {
	noSleep(t)
	control := &fakeControl{createErrs: []error{accessDenied(), accessDenied(), nil}}
	r := newTestReconciler(t, control)

	gw, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.NoError(t, err)
	require.Equal(t, "gw-1", gw.ID)
	require.Equal(t, 3, control.createCalls)
}

func TestEnsureGateway_RetryBudgetExhausted(t *testing.T) {
	noSleep(t)
	errs := make([]error, createMaxAttempts+2)
	for i := range errs {
		errs[i] = accessDenied()
	}
	control := &fakeControl{createErrs: errs}
	r := newTestReconciler(t, control)

	_, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.Error(t, err)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, domain.ErrorTransient, de.Code)
	require.Equal(t, "role_propagation_timeout", de.Reason)
	require.Equal(t, createMaxAttempts, control.createCalls)
}

func TestEnsureGateway_OtherCreateErrorIsNotRetried(t *testing.T) {
	noSleep(t)
	control := &fakeControl{createErrs: []error{errors.New("validation error")}}
	r := newTestReconciler(t, control)

	_, err := r.EnsureGateway(context.Background(), "AgentGateway", validAuthorizer())
	require.Error(t, err)
	require.Equal(t, 1, control.createCalls)
}

func TestFindTarget_Absent(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, ok, err := r.FindTarget(context.Background(), "gw-1", "AgentTools")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnsureLambdaTarget_ReusesExisting(t *testing.T) {
	control := &fakeControl{
		targets: []types.TargetSummary{
			{TargetId: aws.String("tgt-0"), Name: aws.String("AgentTools"), Status: types.TargetStatus("READY")},
		},
	}
	r := newTestReconciler(t, control)

	target, err := r.EnsureLambdaTarget(context.Background(), domain.GatewayInfo{ID: "gw-1", Name: "AgentGateway"},
		"AgentTools", "arn:aws:lambda:eu-central-1:123:function:tools", calculatorSchema(t))
	require.NoError(t, err)
	require.Equal(t, "tgt-0", target.ID)
	require.Nil(t, control.lastCreateTarget)
}

func TestEnsureLambdaTarget_CreatesWhenAbsent(t *testing.T) {
	control := &fakeControl{}
	r := newTestReconciler(t, control)

	target, err := r.EnsureLambdaTarget(context.Background(), domain.GatewayInfo{ID: "gw-1", Name: "AgentGateway"},
		"AgentTools", "arn:aws:lambda:eu-central-1:123:function:tools", calculatorSchema(t))
	require.NoError(t, err)
	require.Equal(t, "tgt-1", target.ID)
	require.Equal(t, "arn:aws:lambda:eu-central-1:123:function:tools", target.LambdaARN)

	mcpCfg, ok := control.lastCreateTarget.TargetConfiguration.(*types.TargetConfigurationMemberMcp)
	require.True(t, ok)
	lambdaCfg, ok := mcpCfg.Value.(*types.McpTargetConfigurationMemberLambda)
	require.True(t, ok)
	require.Equal(t, "arn:aws:lambda:eu-central-1:123:function:tools", aws.ToString(lambdaCfg.Value.LambdaArn))
	payload, ok := lambdaCfg.Value.ToolSchema.(*types.ToolSchemaMemberInlinePayload)
	require.True(t, ok)
	require.Len(t, payload.Value, 1)
	require.Equal(t, "calculator", aws.ToString(payload.Value[0].Name))
}

func TestEnsureLambdaTarget_MissingARN(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, err := r.EnsureLambdaTarget(context.Background(), domain.GatewayInfo{ID: "gw-1"}, "AgentTools", "", calculatorSchema(t))
	require.Error(t, err)
	require.True(t, domain.IsConfiguration(err))
}

func TestEnsureLambdaTarget_MissingSchema(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, err := r.EnsureLambdaTarget(context.Background(), domain.GatewayInfo{ID: "gw-1"}, "AgentTools",
		"arn:aws:lambda:eu-central-1:123:function:tools", domain.ToolSchema{})
	require.Error(t, err)
	require.True(t, domain.IsConfiguration(err))
}

func TestClientInfoFromGateway_HappyPath(t *testing.T) {
	out := getGatewayOutput("gw-1")
	out.AuthorizerConfiguration = &types.AuthorizerConfigurationMemberCustomJWTAuthorizer{
		Value: types.CustomJWTAuthorizerConfiguration{
			DiscoveryUrl:   aws.String("https://cognito-idp.eu-central-1.amazonaws.com/eu-central-1_Abc123/.well-known/openid-configuration"),
			AllowedClients: []string{"client-1"},
		},
	}
	control := &fakeControl{
		gateways: []types.GatewaySummary{gatewaySummary("gw-1", "AgentGateway")},
		getOut:   out,
	}
	r := newTestReconciler(t, control)

	info, err := r.ClientInfoFromGateway(context.Background(), "AgentGateway")
	require.NoError(t, err)
	require.Equal(t, "client-1", info.ClientID)
	require.Equal(t, "eu-central-1_Abc123", info.UserPoolID)
	require.Equal(t, "https://eu-central-1-abc123.auth.eu-central-1.amazoncognito.com/oauth2/token", info.TokenEndpoint)
}

func TestClientInfoFromGateway_GatewayMissing(t *testing.T) {
	r := newTestReconciler(t, &fakeControl{})

	_, err := r.ClientInfoFromGateway(context.Background(), "AgentGateway")
	require.Error(t, err)
	require.True(t, domain.IsNotFound(err))
}

func TestClientInfoFromGateway_NoJWTAuthorizer(t *testing.T) {
	control := &fakeControl{
		gateways: []types.GatewaySummary{gatewaySummary("gw-1", "AgentGateway")},
		getOut:   getGatewayOutput("gw-1"),
	}
	r := newTestReconciler(t, control)

	_, err := r.ClientInfoFromGateway(context.Background(), "AgentGateway")
	require.Error(t, err)
	require.True(t, domain.IsConfiguration(err))
}

func TestUserPoolIDFromDiscoveryURL(t *testing.T) {
	require.Equal(t, "eu-central-1_Abc123",
		userPoolIDFromDiscoveryURL("https://cognito-idp.eu-central-1.amazonaws.com/eu-central-1_Abc123/.well-known/openid-configuration"))
	require.Empty(t, userPoolIDFromDiscoveryURL("https://example.com/no-marker"))
}
