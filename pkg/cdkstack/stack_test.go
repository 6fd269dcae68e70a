package cdkstack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/apistack/pkg/composer"
)

func testGraph(t *testing.T) composer.Graph {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bootstrap"), []byte("#!/bin/sh\n"), 0o755))

	g, err := composer.Compose(composer.Settings{
		Environment: "prod",
		Account:     "123456789012",
		Region:      "us-east-1",
		AssetDir:    dir,
	})
	require.NoError(t, err)
	return g
}

func synth(t *testing.T, g composer.Graph) (*Stack, assertions.Template) {
	t.Helper()

	app := awscdk.NewApp(nil)
	st, err := New(app, g)
	require.NoError(t, err)
	return st, assertions.Template_FromStack(st.Stack, nil)
}

func TestNew_Function(t *testing.T) {
	g := testGraph(t)
	_, template := synth(t, g)

	template.ResourceCountIs(jsii.String("AWS::Lambda::Function"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"FunctionName": "prod-api",
		"Handler":      "bootstrap",
		"Runtime":      "provided.al2",
		"MemorySize":   512,
		"Timeout":      30,
		"TracingConfig": map[string]interface{}{
			"Mode": "Active",
		},
		"RuntimeManagementConfig": map[string]interface{}{
			"UpdateRuntimeOn": "Auto",
		},
		"Environment": map[string]interface{}{
			"Variables": map[string]interface{}{
				"ENV":              "prod",
				"READ_TIMEOUT":     "5s",
				"WRITE_TIMEOUT":    "5s",
				"MAX_HEADER_BYTES": "1048576",
				"DB_TABLE_NAME":    "secrets",
			},
		},
		"Layers": []interface{}{g.Layer.ARN},
	})
}

func TestNew_LogGroupRetainsForever(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasResourceProperties(jsii.String("AWS::Logs::LogGroup"), map[string]interface{}{
		"LogGroupName":    "/aws/apigateway/prod-api-logs",
		"RetentionInDays": assertions.Match_Absent(),
	})
}

func TestNew_AccessPolicyAttachedToFunctionRole(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasResourceProperties(jsii.String("AWS::IAM::Policy"), map[string]interface{}{
		"PolicyName": "prod-api-policy",
		"PolicyDocument": map[string]interface{}{
			"Statement": assertions.Match_ArrayWith(&[]interface{}{
				assertions.Match_ObjectLike(&map[string]interface{}{
					"Effect": "Allow",
					"Action": []interface{}{"appconfig:*", "dynamodb:*"},
				}),
			}),
		},
		"Roles": assertions.Match_AnyValue(),
	})

	denies := template.FindResources(jsii.String("AWS::IAM::Policy"), map[string]interface{}{
		"Properties": map[string]interface{}{
			"PolicyDocument": map[string]interface{}{
				"Statement": assertions.Match_ArrayWith(&[]interface{}{
					assertions.Match_ObjectLike(&map[string]interface{}{"Effect": "Deny"}),
				}),
			},
		},
	})
	require.Empty(t, *denies)
}

func TestNew_GatewayStageAndApi(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasResourceProperties(jsii.String("AWS::ApiGateway::RestApi"), map[string]interface{}{
		"Name":        "prod-api-gateway",
		"Description": "prod API Gateway",
	})
	template.HasResourceProperties(jsii.String("AWS::ApiGateway::Stage"), map[string]interface{}{
		"StageName":      "prod",
		"TracingEnabled": true,
		"AccessLogSetting": assertions.Match_ObjectLike(&map[string]interface{}{
			"DestinationArn": assertions.Match_AnyValue(),
		}),
		"MethodSettings": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{"LoggingLevel": "INFO"}),
		}),
	})
	template.ResourceCountIs(jsii.String("AWS::ApiGateway::Account"), jsii.Number(1))
}

func TestNew_ProxyRoutesShareTheFunction(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasResourceProperties(jsii.String("AWS::ApiGateway::Resource"), map[string]interface{}{
		"PathPart": "{proxy+}",
	})

	proxied := template.FindResources(jsii.String("AWS::ApiGateway::Method"), map[string]interface{}{
		"Properties": map[string]interface{}{
			"HttpMethod": "ANY",
			"Integration": map[string]interface{}{
				"Type":                  "AWS_PROXY",
				"IntegrationHttpMethod": "POST",
			},
		},
	})
	require.Len(t, *proxied, 2)
}

func TestNew_CORSPreflight(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasResourceProperties(jsii.String("AWS::ApiGateway::Method"), map[string]interface{}{
		"HttpMethod": "OPTIONS",
		"Integration": assertions.Match_ObjectLike(&map[string]interface{}{
			"Type": "MOCK",
			"IntegrationResponses": assertions.Match_ArrayWith(&[]interface{}{
				assertions.Match_ObjectLike(&map[string]interface{}{
					"ResponseParameters": assertions.Match_ObjectLike(&map[string]interface{}{
						"method.response.header.Access-Control-Allow-Origin":  "'*'",
						"method.response.header.Access-Control-Allow-Headers": "'Content-Type,Authorization,X-Amz-Date,X-Api-Key,X-Amz-Security-Token,X-Amz-User-Agent,X-Public-Id,Accept'",
						"method.response.header.Access-Control-Max-Age":       "'86400'",
					}),
				}),
			}),
		}),
	})
}

func TestNew_Output(t *testing.T) {
	_, template := synth(t, testGraph(t))

	template.HasOutput(jsii.String("ApiGatewayUrl"), map[string]interface{}{
		"Description": "The base URL of the API Gateway",
		"Export": map[string]interface{}{
			"Name": "prod-api-gateway-url",
		},
	})
}

func TestNew_IdenticalGraphsSynthesizeIdenticalTemplates(t *testing.T) {
	g := testGraph(t)
	_, first := synth(t, g)
	_, second := synth(t, g)

	require.Equal(t, *first.ToJSON(), *second.ToJSON())
}

func TestNew_RejectsInvalidGraph(t *testing.T) {
	g := testGraph(t)
	g.Gateway.Proxy.Integration.Function = "elsewhere"

	st, err := New(awscdk.NewApp(nil), g)
	require.ErrorIs(t, err, composer.ErrInvalidGraph)
	require.Nil(t, st)
}

func TestNew_RejectsUnsupportedValues(t *testing.T) {
	g := testGraph(t)
	g.Function.Runtime = "nodejs4.3"

	st, err := New(awscdk.NewApp(nil), g)
	require.ErrorIs(t, err, ErrUnsupported)
	require.Nil(t, st)
}
