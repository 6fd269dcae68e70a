package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/theory-cloud/apistack/pkg/funcenv"
	"github.com/theory-cloud/apistack/pkg/localgw"
	"github.com/theory-cloud/apistack/pkg/sanitization"
)

type echoBody struct {
	Env       string              `json:"env"`
	Table     string              `json:"table"`
	RequestID string              `json:"request_id"`
	Method    string              `json:"method"`
	Resource  string              `json:"resource"`
	Path      string              `json:"path"`
	Query     map[string][]string `json:"query,omitempty"`
	Headers   map[string]any      `json:"headers,omitempty"`
	Body      string              `json:"body,omitempty"`
	Base64    bool                `json:"base64,omitempty"`
}

// echoFunction describes each proxy event it receives. Sensitive header values are masked.
func echoFunction(settings funcenv.Settings) localgw.Function {
	return localgw.FunctionFunc(func(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		out, err := json.Marshal(echoBody{
			Env:       settings.Env,
			Table:     settings.TableName,
			RequestID: req.RequestContext.RequestID,
			Method:    req.HTTPMethod,
			Resource:  req.Resource,
			Path:      req.Path,
			Query:     req.MultiValueQueryStringParameters,
			Headers:   sanitization.SanitizeHeaders(req.MultiValueHeaders),
			Body:      req.Body,
			Base64:    req.IsBase64Encoded,
		})
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(out),
		}, nil
	})
}
