package localgw

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/oklog/ulid/v2"

	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/logger"
	"github.com/theory-cloud/apistack/pkg/observability"
	"github.com/theory-cloud/apistack/pkg/sanitization"
)

const (
	// MaxPayloadBytes is the REST API request payload ceiling.
	MaxPayloadBytes = 10 << 20

	// ReadTimeout bounds reading a full request, payload included.
	ReadTimeout = 30 * time.Second
	// MaxHeaderBytes is the gateway's own header ceiling.
	MaxHeaderBytes = http.DefaultMaxHeaderBytes
	// writeGrace keeps the connection open past the function timeout so the 504 can be written.
	writeGrace = 5 * time.Second

	traceHeader = "X-Amzn-Trace-Id"
	apiID       = "local"
)

var ErrNoFunction = errors.New("localgw: function is required")

type Option func(*Gateway)

func WithLogger(log observability.StructuredLogger) Option {
	return func(gw *Gateway) {
		if log != nil {
			gw.log = log
		}
	}
}

// WithRequestIDs overrides request ID generation.
func WithRequestIDs(next func() string) Option {
	return func(gw *Gateway) {
		if next != nil {
			gw.requestID = next
		}
	}
}

// WithTraceIDs overrides X-Ray trace header generation.
func WithTraceIDs(next func() string) Option {
	return func(gw *Gateway) {
		if next != nil {
			gw.traceID = next
		}
	}
}

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(gw *Gateway) {
		if now != nil {
			gw.now = now
		}
	}
}

// Gateway is an http.Handler emulating the graph's REST API stage.
type Gateway struct {
	graph composer.Graph
	fn    Function
	log   observability.StructuredLogger

	requestID func() string
	traceID   func() string
	now       func() time.Time

	preflight http.Header
}

func New(g composer.Graph, fn Function, opts ...Option) (*Gateway, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNoFunction
	}

	gw := &Gateway{
		graph:     g.Clone(),
		fn:        fn,
		log:       logger.Logger(),
		requestID: func() string { return ulid.Make().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gw)
		}
	}
	if gw.traceID == nil {
		gw.traceID = gw.randomTraceID
	}
	gw.preflight = preflightHeaders(gw.graph.Gateway.CORS)
	return gw, nil
}

// StagePath is the path prefix every request must carry: /<stage>.
func (gw *Gateway) StagePath() string {
	return "/" + gw.graph.Gateway.StageName
}

// Server returns an http.Server for gw with gateway-level limits. The write timeout
// outlasts the function timeout so slow functions still get their response or a 504.
func (gw *Gateway) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           gw,
		ReadTimeout:       ReadTimeout,
		ReadHeaderTimeout: ReadTimeout,
		WriteTimeout:      gw.graph.Function.Timeout + writeGrace,
		MaxHeaderBytes:    MaxHeaderBytes,
	}
}

func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := gw.now()
	reqID := gw.requestID()

	rec := &accessRecord{
		requestID: reqID,
		ip:        sourceIP(r),
		method:    r.Method,
		protocol:  r.Proto,
		time:      start,
	}
	defer gw.logAccess(rec)

	path, ok := gw.stripStage(r.URL.Path)
	if !ok {
		rec.resourcePath = r.URL.Path
		gw.writeMessage(w, rec, http.StatusForbidden, "Forbidden")
		return
	}
	rec.resourcePath = resourceFor(path)

	if r.Method == http.MethodOptions {
		gw.writePreflight(w, rec)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		gw.writeMessage(w, rec, http.StatusBadRequest, "Bad Request")
		return
	}
	if len(body) > MaxPayloadBytes {
		gw.writeMessage(w, rec, http.StatusRequestEntityTooLarge, "Request Too Long")
		return
	}

	trace := r.Header.Get(traceHeader)
	if trace == "" && gw.graph.Gateway.TracingEnabled {
		trace = gw.traceID()
	}

	event := gw.proxyEvent(r, path, body, reqID, trace, start)

	ctx, cancel := context.WithTimeout(r.Context(), gw.graph.Function.Timeout)
	defer cancel()

	log := gw.log.WithRequestID(reqID)
	if trace != "" {
		log = log.WithTraceID(trace)
	}
	log.Debug("proxy request", map[string]any{
		"path":    path,
		"headers": sanitization.SanitizeHeaders(r.Header),
	})

	resp, err := gw.invoke(ctx, event)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Error("function timed out", map[string]any{"function": gw.graph.Function.Name})
		gw.writeMessage(w, rec, http.StatusGatewayTimeout, "Endpoint request timed out")
		return
	case err != nil:
		log.Error("function invocation failed", map[string]any{
			"function": gw.graph.Function.Name,
			"error":    err.Error(),
		})
		gw.writeMessage(w, rec, http.StatusBadGateway, "Internal server error")
		return
	}

	if err := gw.writeProxyResponse(w, rec, resp); err != nil {
		log.Error("malformed function response", map[string]any{
			"function": gw.graph.Function.Name,
			"error":    err.Error(),
		})
		gw.writeMessage(w, rec, http.StatusBadGateway, "Internal server error")
	}
}

type invocation struct {
	resp events.APIGatewayProxyResponse
	err  error
}

// invoke returns at ctx's deadline even when the function keeps running.
func (gw *Gateway) invoke(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	done := make(chan invocation, 1)
	go func() {
		resp, err := gw.call(ctx, event)
		done <- invocation{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return events.APIGatewayProxyResponse{}, ctx.Err()
	}
}

func (gw *Gateway) call(ctx context.Context, event events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("localgw: function panic: %v", r)
		}
	}()
	return gw.fn.Invoke(ctx, event)
}

func (gw *Gateway) stripStage(path string) (string, bool) {
	prefix := gw.StagePath()
	switch {
	case path == prefix:
		return "/", true
	case strings.HasPrefix(path, prefix+"/"):
		return strings.TrimPrefix(path, prefix), true
	default:
		return "", false
	}
}

func resourceFor(path string) string {
	if path == "/" {
		return composer.RootPath
	}
	return "/" + composer.ProxyPath
}

func (gw *Gateway) proxyEvent(r *http.Request, path string, body []byte, reqID, trace string, start time.Time) events.APIGatewayProxyRequest {
	resource := resourceFor(path)

	headers := r.Header.Clone()
	headers.Set("Host", r.Host)
	if trace != "" {
		headers.Set(traceHeader, trace)
	}
	ip := sourceIP(r)
	headers.Set("X-Forwarded-For", ip)
	headers.Set("X-Forwarded-Proto", forwardedProto(r))

	single := make(map[string]string, len(headers))
	multi := make(map[string][]string, len(headers))
	for k, values := range headers {
		if len(values) == 0 {
			continue
		}
		single[k] = values[len(values)-1]
		multi[k] = append([]string(nil), values...)
	}

	query, multiQuery := splitQuery(r.URL.RawQuery)

	var params map[string]string
	if resource != composer.RootPath {
		params = map[string]string{"proxy": strings.TrimPrefix(path, "/")}
	}

	event := events.APIGatewayProxyRequest{
		Resource:                        resource,
		Path:                            path,
		HTTPMethod:                      r.Method,
		Headers:                         single,
		MultiValueHeaders:               multi,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		PathParameters:                  params,
		RequestContext: events.APIGatewayProxyRequestContext{
			AccountID:        gw.graph.Account,
			Stage:            gw.graph.Gateway.StageName,
			RequestID:        reqID,
			Protocol:         r.Proto,
			ResourcePath:     resource,
			Path:             gw.StagePath() + path,
			HTTPMethod:       r.Method,
			APIID:            apiID,
			DomainName:       r.Host,
			RequestTime:      start.UTC().Format("02/Jan/2006:15:04:05 -0700"),
			RequestTimeEpoch: start.UnixMilli(),
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  ip,
				UserAgent: r.UserAgent(),
			},
		},
	}
	if utf8.Valid(body) {
		event.Body = string(body)
	} else {
		event.Body = base64.StdEncoding.EncodeToString(body)
		event.IsBase64Encoded = true
	}
	return event
}

func (gw *Gateway) writeProxyResponse(w http.ResponseWriter, rec *accessRecord, resp events.APIGatewayProxyResponse) error {
	if resp.StatusCode < 100 || resp.StatusCode > 599 {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			return fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	h := w.Header()
	for k, values := range resp.MultiValueHeaders {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	for k, v := range resp.Headers {
		if _, ok := resp.MultiValueHeaders[k]; ok {
			continue
		}
		h.Set(k, v)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("X-Amzn-RequestId", rec.requestID)

	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	rec.status = resp.StatusCode
	rec.length = len(body)
	return nil
}

func (gw *Gateway) writePreflight(w http.ResponseWriter, rec *accessRecord) {
	h := w.Header()
	for k, v := range gw.preflight {
		h[k] = append([]string(nil), v...)
	}
	h.Set("X-Amzn-RequestId", rec.requestID)
	w.WriteHeader(http.StatusNoContent)
	rec.status = http.StatusNoContent
}

func (gw *Gateway) writeMessage(w http.ResponseWriter, rec *accessRecord, status int, message string) {
	body := []byte(`{"message":"` + message + `"}`)
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("X-Amzn-RequestId", rec.requestID)
	h.Set("X-Amzn-ErrorType", errorType(status))
	w.WriteHeader(status)
	_, _ = w.Write(body)

	rec.status = status
	rec.length = len(body)
}

func errorType(status int) string {
	switch status {
	case http.StatusForbidden:
		return "MissingAuthenticationTokenException"
	case http.StatusRequestEntityTooLarge:
		return "RequestEntityTooLargeException"
	case http.StatusGatewayTimeout:
		return "IntegrationTimeoutException"
	case http.StatusBadRequest:
		return "BadRequestException"
	default:
		return "InternalServerErrorException"
	}
}

func preflightHeaders(cors composer.CORS) http.Header {
	h := http.Header{}
	h.Set("Access-Control-Allow-Origin", strings.Join(cors.AllowOrigins, ","))
	h.Set("Access-Control-Allow-Methods", strings.Join(cors.AllowMethods, ","))
	h.Set("Access-Control-Allow-Headers", strings.Join(cors.AllowHeaders, ","))
	h.Set("Access-Control-Max-Age", strconv.Itoa(int(cors.MaxAge/time.Second)))
	return h
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func forwardedProto(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// splitQuery splits a raw query on '&' only, as API Gateway does. Keys and values
// that do not unescape are passed through as sent.
func splitQuery(raw string) (map[string]string, map[string][]string) {
	if raw == "" {
		return nil, nil
	}
	single := map[string]string{}
	multi := map[string][]string{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k, v = unescapeQuery(k), unescapeQuery(v)
		if k == "" {
			continue
		}
		single[k] = v
		multi[k] = append(multi[k], v)
	}
	if len(single) == 0 {
		return nil, nil
	}
	return single, multi
}

func unescapeQuery(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func (gw *Gateway) randomTraceID() string {
	id, err := newTraceID(gw.now(), rand.Reader)
	if err != nil {
		gw.log.Warn("trace id generation failed", map[string]any{"error": err.Error()})
		return ""
	}
	return id
}

// newTraceID returns an X-Ray root trace header: Root=1-<epoch hex>-<96 random bits>.
func newTraceID(now time.Time, entropy io.Reader) (string, error) {
	var b [12]byte
	if _, err := io.ReadFull(entropy, b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("Root=1-%08x-%s;Sampled=1", now.Unix(), hex.EncodeToString(b[:])), nil
}
