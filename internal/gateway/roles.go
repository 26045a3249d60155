package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

const gatewayRolePolicyName = "GatewayInvokePolicy"

const gatewayTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "bedrock-agentcore.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

const gatewayInvokePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["lambda:InvokeFunction"],
      "Resource": "*"
    }
  ]
}`

// iamAPI is the minimal IAM interface required by RoleManager.
// *iam.Client satisfies it.
type iamAPI interface {
	GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	ListRolePolicies(ctx context.Context, in *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	DeleteRolePolicy(ctx context.Context, in *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, in *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	DetachRolePolicy(ctx context.Context, in *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// RoleManager owns the gateway execution role lifecycle: the role the gateway
// assumes to invoke target functions.
type RoleManager struct {
	api iamAPI
	log *slog.Logger
}

// NewRoleManager creates a RoleManager.
func NewRoleManager(api iamAPI, log *slog.Logger) (*RoleManager, error) {
	if api == nil {
		return nil, errors.New("gateway: iam api must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RoleManager{api: api, log: log}, nil
}

// RoleNameForGateway derives the execution role name for a gateway.
func RoleNameForGateway(gatewayName string) string {
	return gatewayName + "ExecutionRole"
}

// EnsureGatewayRole returns the ARN of the gateway execution role, creating
// the role and its invoke policy when absent. The post-create fix-up granting
// the invoke permission runs on every creation.
func (m *RoleManager) EnsureGatewayRole(ctx context.Context, gatewayName string) (string, error) {
	roleName := RoleNameForGateway(gatewayName)

	got, err := m.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err == nil {
		arn := aws.ToString(got.Role.Arn)
		m.log.Info("execution role already exists", "role", roleName, "arn", arn)
		return arn, nil
	}
	var noSuchEntity *iamtypes.NoSuchEntityException
	if !errors.As(err, &noSuchEntity) {
		return "", fmt.Errorf("gateway: get role %q: %w", roleName, err)
	}

	created, err := m.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(gatewayTrustPolicy),
		Description:              aws.String("Execution role for gateway " + gatewayName),
	})
	if err != nil {
		return "", fmt.Errorf("gateway: create role %q: %w", roleName, err)
	}

	if _, err := m.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(gatewayRolePolicyName),
		PolicyDocument: aws.String(gatewayInvokePolicy),
	}); err != nil {
		return "", fmt.Errorf("gateway: attach invoke policy to %q: %w", roleName, err)
	}

	arn := aws.ToString(created.Role.Arn)
	m.log.Info("execution role created", "role", roleName, "arn", arn)
	return arn, nil
}

// DeleteRole removes the role and everything attached to it. Absence at any
// step logs a warning and continues; other errors propagate.
func (m *RoleManager) DeleteRole(ctx context.Context, roleName string) error {
	inline, err := m.api.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil {
		if isNotFoundClass(err) {
			m.log.Warn("role not found, skipping deletion", "role", roleName)
			return nil
		}
		return fmt.Errorf("gateway: list inline policies of %q: %w", roleName, err)
	}
	for _, policyName := range inline.PolicyNames {
		if _, err := m.api.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		}); err != nil && !isNotFoundClass(err) {
			return fmt.Errorf("gateway: delete inline policy %q of %q: %w", policyName, roleName, err)
		}
	}

	attached, err := m.api.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil && !isNotFoundClass(err) {
		return fmt.Errorf("gateway: list attached policies of %q: %w", roleName, err)
	}
	if attached != nil {
		for _, policy := range attached.AttachedPolicies {
			if _, err := m.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  aws.String(roleName),
				PolicyArn: policy.PolicyArn,
			}); err != nil && !isNotFoundClass(err) {
				return fmt.Errorf("gateway: detach policy %q from %q: %w", aws.ToString(policy.PolicyArn), roleName, err)
			}
		}
	}

	if _, err := m.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)}); err != nil {
		if isNotFoundClass(err) {
			m.log.Warn("role already gone", "role", roleName)
			return nil
		}
		return fmt.Errorf("gateway: delete role %q: %w", roleName, err)
	}
	m.log.Info("execution role deleted", "role", roleName)
	return nil
}
