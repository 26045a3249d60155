package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"

	"agentcore-agent/internal/secrets"
)

// TeardownInput names the resources a full teardown removes.
type TeardownInput struct {
	GatewayName  string
	FunctionName string
	RoleName     string
}

// Teardown removes the provisioned chain in reverse order: the target's
// backing function, its execution role, the gateway (with its targets), and
// the client secret. Each step logs and continues on absence; any other error
// class aborts the teardown so unexpected failures are never silently
// swallowed.
func (r *Reconciler) Teardown(ctx context.Context, in TeardownInput) error {
	if in.FunctionName != "" {
		if err := r.functions.Delete(ctx, in.FunctionName); err != nil {
			return fmt.Errorf("gateway: teardown function: %w", err)
		}
	}

	if in.RoleName != "" {
		if err := r.roles.DeleteRole(ctx, in.RoleName); err != nil {
			return fmt.Errorf("gateway: teardown role: %w", err)
		}
	}

	gw, ok, err := r.FindGateway(ctx, in.GatewayName)
	if err != nil {
		return fmt.Errorf("gateway: teardown lookup: %w", err)
	}
	if !ok {
		r.log.Warn("gateway not found, skipping deletion", "name", in.GatewayName)
	} else {
		if err := r.deleteGateway(ctx, gw.ID); err != nil {
			return err
		}
		if err := r.roles.DeleteRole(ctx, RoleNameForGateway(in.GatewayName)); err != nil {
			return fmt.Errorf("gateway: teardown execution role: %w", err)
		}
	}

	if err := r.secrets.Delete(ctx, secrets.NameForGateway(in.GatewayName)); err != nil {
		return fmt.Errorf("gateway: teardown secret: %w", err)
	}

	r.log.Info("teardown completed", "gateway", in.GatewayName)
	return nil
}

// deleteGateway removes every target first; the control plane refuses to
// delete a gateway that still has targets.
func (r *Reconciler) deleteGateway(ctx context.Context, gatewayID string) error {
	var next *string
	for {
		out, err := r.control.ListGatewayTargets(ctx, &bedrockagentcorecontrol.ListGatewayTargetsInput{
			GatewayIdentifier: aws.String(gatewayID),
			MaxResults:        aws.Int32(50),
			NextToken:         next,
		})
		if err != nil {
			if isNotFoundClass(err) {
				break
			}
			return fmt.Errorf("gateway: list targets during teardown: %w", err)
		}
		for _, item := range out.Items {
			if _, err := r.control.DeleteGatewayTarget(ctx, &bedrockagentcorecontrol.DeleteGatewayTargetInput{
				GatewayIdentifier: aws.String(gatewayID),
				TargetId:          item.TargetId,
			}); err != nil && !isNotFoundClass(err) {
				return fmt.Errorf("gateway: delete target %q: %w", aws.ToString(item.TargetId), err)
			}
			r.log.Info("target deleted", "target", aws.ToString(item.TargetId))
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	if _, err := r.control.DeleteGateway(ctx, &bedrockagentcorecontrol.DeleteGatewayInput{
		GatewayIdentifier: aws.String(gatewayID),
	}); err != nil {
		if isNotFoundClass(err) {
			r.log.Warn("gateway already gone", "id", gatewayID)
			return nil
		}
		return fmt.Errorf("gateway: delete gateway %q: %w", gatewayID, err)
	}
	r.log.Info("gateway deleted", "id", gatewayID)
	return nil
}
