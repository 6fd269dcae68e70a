package testkit

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// ProxyEventOptions configures synthetic API Gateway proxy events.
type ProxyEventOptions struct {
	Stage        string
	Query        map[string][]string
	Headers      map[string]string
	MultiHeaders map[string][]string
	Body         []byte
	IsBase64     bool
}

// ProxyRequest builds the event a REST API catch-all proxy route delivers for method and path.
func ProxyRequest(method, path string, opts ProxyEventOptions) events.APIGatewayProxyRequest {
	rawPath, rawQuery := splitPathAndQuery(path, opts.Query)
	headers, multiHeaders := mergeHeaders(opts)
	query, multiQuery := parseQuery(rawQuery, opts.Query)

	resource := "/{proxy+}"
	var params map[string]string
	if rawPath == "/" {
		resource = "/"
	} else {
		params = map[string]string{"proxy": strings.TrimPrefix(rawPath, "/")}
	}

	stage := opts.Stage
	if stage == "" {
		stage = "prod"
	}
	method = strings.ToUpper(strings.TrimSpace(method))

	return events.APIGatewayProxyRequest{
		Resource:                        resource,
		Path:                            rawPath,
		HTTPMethod:                      method,
		Headers:                         headers,
		MultiValueHeaders:               nilIfEmpty(multiHeaders),
		QueryStringParameters:           nilIfEmptyString(query),
		MultiValueQueryStringParameters: nilIfEmpty(multiQuery),
		PathParameters:                  params,
		RequestContext: events.APIGatewayProxyRequestContext{
			Stage:        stage,
			ResourcePath: resource,
			Path:         "/" + stage + rawPath,
			HTTPMethod:   method,
		},
		Body:            encodeBody(opts.Body, opts.IsBase64),
		IsBase64Encoded: opts.IsBase64,
	}
}

// Call is one recorded invocation of a RecordingFunction.
type Call struct {
	Request events.APIGatewayProxyRequest
}

// RecordingFunction records every invocation and answers with a fixed response or error.
type RecordingFunction struct {
	mu       sync.Mutex
	calls    []Call
	response events.APIGatewayProxyResponse
	err      error
}

func NewRecordingFunction(resp events.APIGatewayProxyResponse) *RecordingFunction {
	return &RecordingFunction{response: resp}
}

// FailingFunction records invocations and always returns err.
func FailingFunction(err error) *RecordingFunction {
	return &RecordingFunction{err: err}
}

func (f *RecordingFunction) Invoke(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Request: req})
	if f.err != nil {
		return events.APIGatewayProxyResponse{}, f.err
	}
	return f.response, nil
}

func (f *RecordingFunction) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *RecordingFunction) Last() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func mergeHeaders(opts ProxyEventOptions) (map[string]string, map[string][]string) {
	headers := cloneHeaderMap(opts.Headers)

	multiHeaders := map[string][]string{}
	for key, values := range opts.MultiHeaders {
		multiHeaders[key] = append([]string(nil), values...)
	}
	for key, value := range headers {
		if _, ok := multiHeaders[key]; ok {
			continue
		}
		multiHeaders[key] = []string{value}
	}
	for key, values := range multiHeaders {
		if len(values) == 0 {
			continue
		}
		if _, ok := headers[key]; ok {
			continue
		}
		headers[key] = values[len(values)-1]
	}
	return headers, multiHeaders
}

func parseQuery(rawQuery string, query map[string][]string) (map[string]string, map[string][]string) {
	if len(query) == 0 && rawQuery != "" {
		if values, err := url.ParseQuery(rawQuery); err == nil {
			query = map[string][]string(values)
		}
	}

	single := map[string]string{}
	multi := map[string][]string{}
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		single[key] = values[len(values)-1]
		multi[key] = append([]string(nil), values...)
	}
	return single, multi
}

func encodeBody(body []byte, isBase64 bool) string {
	if len(body) == 0 {
		return ""
	}
	if isBase64 {
		return base64.StdEncoding.EncodeToString(body)
	}
	return string(body)
}

func splitPathAndQuery(path string, query map[string][]string) (string, string) {
	parsed := strings.TrimSpace(path)
	rawPath, rawQuery, ok := strings.Cut(parsed, "?")
	if !ok {
		rawPath = parsed
		rawQuery = ""
	}

	rawPath = strings.TrimSpace(rawPath)
	if rawPath == "" {
		rawPath = "/"
	}
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}

	if len(query) == 0 {
		return rawPath, rawQuery
	}

	values := url.Values{}
	for key, vs := range query {
		values[key] = append([]string(nil), vs...)
	}
	return rawPath, values.Encode()
}

func cloneHeaderMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nilIfEmpty(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	return in
}

func nilIfEmptyString(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	return in
}
