package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
)

// HealthResponse is returned by the liveness probe
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

// ReadyResponse is returned by the readiness probe
type ReadyResponse struct {
	Status   string            `json:"status" example:"ready"`
	Sessions int               `json:"sessions" example:"3"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"SERVICE_UNAVAILABLE"`
	Message string `json:"message" example:"Service is not ready"`
}

// SessionMessage documents the envelope every WebSocket message uses.
type SessionMessage struct {
	Type string `json:"type" example:"FRAME"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facestream",
		Version:     "v1.0.0",
		Description: "Real-time face enrollment and recognition over WebSocket sessions",
		Host:        "localhost:9000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Process is up"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Reports live sessions and, when a database is configured, whether it answers a ping."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReadyResponse{}, "200", "Ready to accept sessions"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{}, "503", "Service Unavailable"),
			}),
		),

		endpoint.New(
			endpoint.GET,
			"/metrics",
			endpoint.WithTags("Observability"),
			endpoint.WithSummary("Prometheus metrics"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("text/plain")}),
		),

		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Open a session"),
			endpoint.WithDescription("Upgrades to a WebSocket. Each connection owns one session; messages are JSON objects discriminated by type (TRAINING, TRAINALLIMAGES, INFO, TESTING, STOPPED_ACK, FEEDBACK, NULL, FRAME, register_click, UPDATE_IDENTITY, REMOVE_IMAGE, REQ_TSNE, ALL_STATE)."),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionMessage{}, "101", "Switching Protocols"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
