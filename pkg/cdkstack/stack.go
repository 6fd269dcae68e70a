// Package cdkstack realizes a composer.Graph as an AWS CDK stack.
//
// It is the only package that knows about CloudFormation: every value it sets comes
// from the graph, so the synthesized template is as deterministic as the graph itself.
package cdkstack

import (
	"errors"
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/policy"
)

var (
	ErrUnsupported = errors.New("cdkstack: unsupported graph value")
	ErrConstruct   = errors.New("cdkstack: construct failed")
)

// Stack exposes the constructs created for a graph.
type Stack struct {
	awscdk.Stack

	LogGroup    awslogs.LogGroup
	Function    awslambda.Function
	Layer       awslambda.ILayerVersion
	Policy      awsiam.Policy
	API         awsapigateway.RestApi
	Integration awsapigateway.LambdaIntegration
	RootMethod  awsapigateway.Method
	Proxy       awsapigateway.ProxyResource
	Output      awscdk.CfnOutput
}

// New adds the stack for g to scope. An invalid graph is rejected before any construct
// is created; a failure inside the CDK aborts the whole stack.
func New(scope constructs.Construct, g composer.Graph) (out *Stack, err error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrConstruct, r)
		}
	}()

	props, err := translate(g)
	if err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(scope, jsii.String(g.StackID), &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: jsii.String(g.Account),
			Region:  jsii.String(g.Region),
		},
		Description: jsii.String(g.Gateway.Description + " and function"),
	})
	s := &Stack{Stack: stack}

	s.LogGroup = awslogs.NewLogGroup(stack, jsii.String(g.LogSink.ID), &awslogs.LogGroupProps{
		LogGroupName: jsii.String(g.LogSink.Name),
		Retention:    props.retention,
	})

	s.Function = awslambda.NewFunction(stack, jsii.String(g.Function.ID), &awslambda.FunctionProps{
		FunctionName:          jsii.String(g.Function.Name),
		Runtime:               props.runtime,
		Code:                  awslambda.Code_FromAsset(jsii.String(g.Function.AssetDir), nil),
		Handler:               jsii.String(g.Function.Handler),
		MemorySize:            jsii.Number(float64(g.Function.MemoryMB)),
		Timeout:               awscdk.Duration_Seconds(jsii.Number(g.Function.Timeout.Seconds())),
		Environment:           stringMap(g.Function.Environment),
		Tracing:               props.tracing,
		RuntimeManagementMode: props.runtimeManagement,
	})

	s.Layer = awslambda.LayerVersion_FromLayerVersionArn(stack, jsii.String(g.Layer.ID), jsii.String(g.Layer.ARN))
	s.Function.AddLayers(s.Layer)

	s.Policy = awsiam.NewPolicy(stack, jsii.String(g.Policy.ID), &awsiam.PolicyProps{
		PolicyName: jsii.String(g.Policy.Document.Name),
		Statements: props.statements,
	})
	s.Function.Role().AttachInlinePolicy(s.Policy)

	s.Integration = awsapigateway.NewLambdaIntegration(s.Function, &awsapigateway.LambdaIntegrationOptions{
		Proxy: jsii.Bool(g.Gateway.Default.Proxy),
	})

	cors := g.Gateway.CORS
	s.API = awsapigateway.NewRestApi(stack, jsii.String(g.Gateway.ID), &awsapigateway.RestApiProps{
		RestApiName:    jsii.String(g.Gateway.Name),
		Description:    jsii.String(g.Gateway.Description),
		Deploy:         jsii.Bool(true),
		CloudWatchRole: jsii.Bool(g.Gateway.CloudWatchRole),
		DeployOptions: &awsapigateway.StageOptions{
			StageName:            jsii.String(g.Gateway.StageName),
			TracingEnabled:       jsii.Bool(g.Gateway.TracingEnabled),
			LoggingLevel:         props.loggingLevel,
			AccessLogDestination: awsapigateway.NewLogGroupLogDestination(s.LogGroup),
		},
		DefaultCorsPreflightOptions: &awsapigateway.CorsOptions{
			AllowMethods: jsii.Strings(cors.AllowMethods...),
			AllowHeaders: jsii.Strings(cors.AllowHeaders...),
			AllowOrigins: jsii.Strings(cors.AllowOrigins...),
			MaxAge:       awscdk.Duration_Seconds(jsii.Number(cors.MaxAge.Seconds())),
		},
		DefaultIntegration: s.Integration,
	})

	s.RootMethod = s.API.Root().AddMethod(jsii.String(g.Gateway.Root.Method), s.Integration, nil)
	s.Proxy = s.API.Root().AddProxy(&awsapigateway.ProxyResourceOptions{
		DefaultIntegration: s.Integration,
		AnyMethod:          jsii.Bool(g.Gateway.Proxy.Method == composer.AnyMethod),
	})

	s.Output = awscdk.NewCfnOutput(stack, jsii.String(g.Output.ID), &awscdk.CfnOutputProps{
		Value:       s.API.Url(),
		Description: jsii.String(g.Output.Description),
		ExportName:  jsii.String(g.Output.ExportName),
	})

	return s, nil
}

type translated struct {
	retention         awslogs.RetentionDays
	runtime           awslambda.Runtime
	tracing           awslambda.Tracing
	runtimeManagement awslambda.RuntimeManagementMode
	loggingLevel      awsapigateway.MethodLoggingLevel
	statements        *[]awsiam.PolicyStatement
}

// translate maps graph enumerations onto CDK values, failing on anything unknown.
func translate(g composer.Graph) (translated, error) {
	var t translated

	switch g.LogSink.Retention {
	case composer.RetentionInfinite:
		t.retention = awslogs.RetentionDays_INFINITE
	default:
		return t, fmt.Errorf("%w: retention %q", ErrUnsupported, g.LogSink.Retention)
	}

	switch g.Function.Runtime {
	case composer.RuntimeProvidedAL2:
		t.runtime = awslambda.Runtime_PROVIDED_AL2()
	default:
		return t, fmt.Errorf("%w: runtime %q", ErrUnsupported, g.Function.Runtime)
	}

	switch g.Function.Tracing {
	case composer.TracingActive:
		t.tracing = awslambda.Tracing_ACTIVE
	default:
		return t, fmt.Errorf("%w: tracing %q", ErrUnsupported, g.Function.Tracing)
	}

	switch g.Function.RuntimeManagement {
	case composer.RuntimeManagementAuto:
		t.runtimeManagement = awslambda.RuntimeManagementMode_AUTO()
	default:
		return t, fmt.Errorf("%w: runtime management %q", ErrUnsupported, g.Function.RuntimeManagement)
	}

	switch g.Gateway.LoggingLevel {
	case composer.LoggingLevelInfo:
		t.loggingLevel = awsapigateway.MethodLoggingLevel_INFO
	default:
		return t, fmt.Errorf("%w: logging level %q", ErrUnsupported, g.Gateway.LoggingLevel)
	}

	stmts := make([]awsiam.PolicyStatement, 0, len(g.Policy.Document.Statements))
	for _, st := range g.Policy.Document.Statements {
		if st.Effect != policy.Allow {
			return t, fmt.Errorf("%w: effect %q", ErrUnsupported, st.Effect)
		}
		stmts = append(stmts, awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Effect:    awsiam.Effect_ALLOW,
			Actions:   jsii.Strings(st.Actions...),
			Resources: jsii.Strings(st.Resources...),
		}))
	}
	t.statements = &stmts

	return t, nil
}

func stringMap(in map[string]string) *map[string]*string {
	out := make(map[string]*string, len(in))
	for k, v := range in {
		out[k] = jsii.String(v)
	}
	return &out
}
