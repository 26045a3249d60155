package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut  *ssm.GetParameterOutput
	getErr  error
	putErr  error
	lastGet *ssm.GetParameterInput
	lastPut *ssm.PutParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastGet = in
	return f.getOut, f.getErr
}

func (f *fakeAPI) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.lastPut = in
	return &ssm.PutParameterOutput{}, f.putErr
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: aws.String("/agentcore/agentgateway/gateway-url"), Value: aws.String("https://gw-1.example.com/mcp"),
	}}}
	client, err := New(api)
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "/agentcore/agentgateway/gateway-url")
	require.NoError(t, err)
	require.Equal(t, "https://gw-1.example.com/mcp", v)
	require.True(t, aws.ToBool(api.lastGet.WithDecryption))
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestPutParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)

	err = client.PutParameter(context.Background(), "/agentcore/agentgateway/gateway-id", "gw-1")
	require.NoError(t, err)
	require.Equal(t, "gw-1", aws.ToString(api.lastPut.Value))
	require.Equal(t, types.ParameterTypeString, api.lastPut.Type)
	require.True(t, aws.ToBool(api.lastPut.Overwrite))
}

func TestPutParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)

	require.Error(t, client.PutParameter(context.Background(), " ", "v"))
}

func TestPutParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{putErr: errors.New("access denied")})
	require.NoError(t, err)

	err = client.PutParameter(context.Background(), "/name", "v")
	require.Error(t, err)
	require.Contains(t, err.Error(), "put parameter")
}
