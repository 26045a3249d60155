package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"agentcore-agent/internal/domain"
)

// lambdaAPI is the minimal Lambda interface required by FunctionClient.
// *lambda.Client satisfies it.
type lambdaAPI interface {
	GetFunction(ctx context.Context, in *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	DeleteFunction(ctx context.Context, in *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// FunctionClient resolves and removes the tool-execution function backing a
// gateway target.
type FunctionClient struct {
	api lambdaAPI
	log *slog.Logger
}

// NewFunctionClient creates a FunctionClient.
func NewFunctionClient(api lambdaAPI, log *slog.Logger) (*FunctionClient, error) {
	if api == nil {
		return nil, errors.New("gateway: lambda api must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &FunctionClient{api: api, log: log}, nil
}

// ARN looks up the deployed function's ARN. Target creation is meaningless
// without it, so absence is a configuration error, not a not-found skip.
func (c *FunctionClient) ARN(ctx context.Context, functionName string) (string, error) {
	out, err := c.api.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		var notFound *lambdatypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", domain.ConfigError("function_not_deployed",
				fmt.Errorf("gateway: function %q is not deployed: %w", functionName, err))
		}
		return "", fmt.Errorf("gateway: get function %q: %w", functionName, err)
	}
	if out.Configuration == nil || out.Configuration.FunctionArn == nil {
		return "", fmt.Errorf("gateway: function %q has no ARN", functionName)
	}
	return aws.ToString(out.Configuration.FunctionArn), nil
}

// Delete removes the function; absence is logged, not an error.
func (c *FunctionClient) Delete(ctx context.Context, functionName string) error {
	_, err := c.api.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		var notFound *lambdatypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			c.log.Warn("function not found, skipping deletion", "function", functionName)
			return nil
		}
		return fmt.Errorf("gateway: delete function %q: %w", functionName, err)
	}
	c.log.Info("function deleted", "function", functionName)
	return nil
}
