package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/pkg/api"
)

const (
	InsightServiceName                       = "utilipay.v1.InsightService"
	InsightServiceExplainSettlementProcedure = "/utilipay.v1.InsightService/ExplainSettlement"
	InsightServiceAuditUsageProcedure        = "/utilipay.v1.InsightService/AuditUsage"
)

// InsightServiceHandler explains settlements and audits usage.
type InsightServiceHandler interface {
	ExplainSettlement(context.Context, *connect.Request[api.ExplainSettlementRequest]) (*connect.Response[api.ExplainSettlementResponse], error)
	AuditUsage(context.Context, *connect.Request[api.AuditUsageRequest]) (*connect.Response[api.AuditUsageResponse], error)
}

// NewInsightServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewInsightServiceHandler(svc InsightServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	explainSettlementHandler := connect.NewUnaryHandler(InsightServiceExplainSettlementProcedure, svc.ExplainSettlement, opts...)
	auditUsageHandler := connect.NewUnaryHandler(InsightServiceAuditUsageProcedure, svc.AuditUsage, opts...)
	return "/" + InsightServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case InsightServiceExplainSettlementProcedure:
			explainSettlementHandler.ServeHTTP(w, r)
		case InsightServiceAuditUsageProcedure:
			auditUsageHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// InsightServiceClient is a client for InsightService.
type InsightServiceClient interface {
	ExplainSettlement(context.Context, *connect.Request[api.ExplainSettlementRequest]) (*connect.Response[api.ExplainSettlementResponse], error)
	AuditUsage(context.Context, *connect.Request[api.AuditUsageRequest]) (*connect.Response[api.AuditUsageResponse], error)
}

// NewInsightServiceClient constructs a client for InsightService. baseURL is the server's
// scheme and host, for example http://localhost:8080.
func NewInsightServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) InsightServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &insightServiceClient{
		explainSettlement: connect.NewClient[api.ExplainSettlementRequest, api.ExplainSettlementResponse](httpClient, baseURL+InsightServiceExplainSettlementProcedure, opts...),
		auditUsage:        connect.NewClient[api.AuditUsageRequest, api.AuditUsageResponse](httpClient, baseURL+InsightServiceAuditUsageProcedure, opts...),
	}
}

type insightServiceClient struct {
	explainSettlement *connect.Client[api.ExplainSettlementRequest, api.ExplainSettlementResponse]
	auditUsage        *connect.Client[api.AuditUsageRequest, api.AuditUsageResponse]
}

func (c *insightServiceClient) ExplainSettlement(ctx context.Context, req *connect.Request[api.ExplainSettlementRequest]) (*connect.Response[api.ExplainSettlementResponse], error) {
	return c.explainSettlement.CallUnary(ctx, req)
}

func (c *insightServiceClient) AuditUsage(ctx context.Context, req *connect.Request[api.AuditUsageRequest]) (*connect.Response[api.AuditUsageResponse], error) {
	return c.auditUsage.CallUnary(ctx, req)
}
