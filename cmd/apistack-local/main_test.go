package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/apistack/pkg/funcenv"
	"github.com/theory-cloud/apistack/pkg/localgw"
	"github.com/theory-cloud/apistack/testkit"
)

func runPlan(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"plan", "--account", "123456789012", "--region", "us-east-1", "--asset-dir", "/opt/fn"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestPlanIsDeterministic(t *testing.T) {
	first := runPlan(t, "--env", "dev")
	second := runPlan(t, "--env", "dev")

	require.Equal(t, first, second)
	require.Contains(t, first, "stack_id: dev-api-stack")
	require.Contains(t, first, "export_name: dev-api-gateway-url")
	require.Contains(t, first, "timeout: 30s")
}

func TestPlanRejectsInvalidEnvironment(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"plan", "--env", "Not_Valid", "--account", "123456789012", "--region", "us-east-1"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestEchoFunctionBehindGateway(t *testing.T) {
	g := testkit.Graph("prod")
	settings := funcenv.FromMap(g.Function.Environment, nil)
	gw, err := localgw.New(g, echoFunction(settings))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/prod/anything/nested/path?x=1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body echoBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "prod", body.Env)
	require.Equal(t, "secrets", body.Table)
	require.Equal(t, "/anything/nested/path", body.Path)
	require.Equal(t, "/{proxy+}", body.Resource)
	require.Equal(t, []string{"1"}, body.Query["x"])
	require.NotContains(t, rec.Body.String(), "secret-token")
}

func TestEchoFunctionDescribesEvent(t *testing.T) {
	settings := funcenv.Defaults("dev")
	event := testkit.ProxyRequest("post", "/items?tag=a&tag=b", testkit.ProxyEventOptions{
		Stage:    "dev",
		Headers:  map[string]string{"X-Api-Key": "abcd1234efgh5678"},
		Body:     []byte{0xff, 0x01},
		IsBase64: true,
	})

	resp, err := echoFunction(settings).Invoke(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	var body echoBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	require.Equal(t, "dev", body.Env)
	require.Equal(t, http.MethodPost, body.Method)
	require.Equal(t, "/{proxy+}", body.Resource)
	require.Equal(t, "/items", body.Path)
	require.Equal(t, []string{"a", "b"}, body.Query["tag"])
	require.Equal(t, "/wE=", body.Body)
	require.True(t, body.Base64)
	require.Equal(t, "abcd***5678", body.Headers["x-api-key"])
}
