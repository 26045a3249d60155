package gateway

import (
	"context"
	"fmt"
	"strings"
)

// ParameterSource is the parameter lookup used to resolve provisioning output
// recorded at setup time. *paramstore.Client satisfies it.
type ParameterSource interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// URLParameterName builds the parameter name under which setup records the
// gateway endpoint.
func URLParameterName(prefix, gatewayName string) string {
	return parameterName(prefix, gatewayName, "gateway-url")
}

// IDParameterName builds the parameter name under which setup records the
// gateway id.
func IDParameterName(prefix, gatewayName string) string {
	return parameterName(prefix, gatewayName, "gateway-id")
}

func parameterName(prefix, gatewayName, suffix string) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(prefix, "/"),
		strings.ToLower(gatewayName),
		suffix,
	)
}

// ResolveURL returns the gateway endpoint, preferring the parameter recorded
// at setup time. A missing or empty parameter falls back to a control-plane
// lookup by name.
func (r *Reconciler) ResolveURL(ctx context.Context, params ParameterSource, prefix, gatewayName string) (string, error) {
	if url, err := params.GetParameter(ctx, URLParameterName(prefix, gatewayName)); err == nil && url != "" {
		return url, nil
	}

	gw, ok, err := r.FindGateway(ctx, gatewayName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("gateway %q is not provisioned, run setup first", gatewayName)
	}
	return gw.URL, nil
}
