package localgw

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// Function is the compute function behind the gateway.
type Function interface {
	Invoke(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// FunctionFunc adapts an ordinary Lambda handler to Function.
type FunctionFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func (f FunctionFunc) Invoke(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return f(ctx, req)
}
