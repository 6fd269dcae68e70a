package localgw

import "time"

type accessRecord struct {
	requestID    string
	ip           string
	method       string
	resourcePath string
	protocol     string
	status       int
	length       int
	time         time.Time
}

// logAccess writes one entry per request in the stage's access log shape.
func (gw *Gateway) logAccess(rec *accessRecord) {
	gw.log.Info("access", map[string]any{
		"log_group":      gw.graph.LogSink.Name,
		"requestId":      rec.requestID,
		"ip":             rec.ip,
		"requestTime":    rec.time.UTC().Format("02/Jan/2006:15:04:05 -0700"),
		"httpMethod":     rec.method,
		"resourcePath":   rec.resourcePath,
		"status":         rec.status,
		"protocol":       rec.protocol,
		"responseLength": rec.length,
	})
}
