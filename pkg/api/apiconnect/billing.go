package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/pkg/api"
)

const (
	BillingServiceName                       = "utilipay.v1.BillingService"
	BillingServicePayBillProcedure           = "/utilipay.v1.BillingService/PayBill"
	BillingServiceGetDashboardProcedure      = "/utilipay.v1.BillingService/GetDashboard"
	BillingServiceGetBillingDataProcedure    = "/utilipay.v1.BillingService/GetBillingData"
	BillingServiceGetPaymentHistoryProcedure = "/utilipay.v1.BillingService/GetPaymentHistory"
	BillingServiceGetReceiptProcedure        = "/utilipay.v1.BillingService/GetReceipt"
	BillingServiceExportHistoryProcedure     = "/utilipay.v1.BillingService/ExportHistory"
)

// BillingServiceHandler pays bills and reports billing state.
type BillingServiceHandler interface {
	PayBill(context.Context, *connect.Request[api.PayBillRequest]) (*connect.Response[api.PayBillResponse], error)
	GetDashboard(context.Context, *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error)
	GetBillingData(context.Context, *connect.Request[api.GetBillingDataRequest]) (*connect.Response[api.GetBillingDataResponse], error)
	GetPaymentHistory(context.Context, *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error)
	GetReceipt(context.Context, *connect.Request[api.GetReceiptRequest]) (*connect.Response[api.GetReceiptResponse], error)
	ExportHistory(context.Context, *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error)
}

// NewBillingServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewBillingServiceHandler(svc BillingServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	payBillHandler := connect.NewUnaryHandler(BillingServicePayBillProcedure, svc.PayBill, opts...)
	getDashboardHandler := connect.NewUnaryHandler(BillingServiceGetDashboardProcedure, svc.GetDashboard, opts...)
	getBillingDataHandler := connect.NewUnaryHandler(BillingServiceGetBillingDataProcedure, svc.GetBillingData, opts...)
	getPaymentHistoryHandler := connect.NewUnaryHandler(BillingServiceGetPaymentHistoryProcedure, svc.GetPaymentHistory, opts...)
	getReceiptHandler := connect.NewUnaryHandler(BillingServiceGetReceiptProcedure, svc.GetReceipt, opts...)
	exportHistoryHandler := connect.NewUnaryHandler(BillingServiceExportHistoryProcedure, svc.ExportHistory, opts...)
	return "/" + BillingServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case BillingServicePayBillProcedure:
			payBillHandler.ServeHTTP(w, r)
		case BillingServiceGetDashboardProcedure:
			getDashboardHandler.ServeHTTP(w, r)
		case BillingServiceGetBillingDataProcedure:
			getBillingDataHandler.ServeHTTP(w, r)
		case BillingServiceGetPaymentHistoryProcedure:
			getPaymentHistoryHandler.ServeHTTP(w, r)
		case BillingServiceGetReceiptProcedure:
			getReceiptHandler.ServeHTTP(w, r)
		case BillingServiceExportHistoryProcedure:
			exportHistoryHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// BillingServiceClient is a client for BillingService.
type BillingServiceClient interface {
	PayBill(context.Context, *connect.Request[api.PayBillRequest]) (*connect.Response[api.PayBillResponse], error)
	GetDashboard(context.Context, *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error)
	GetBillingData(context.Context, *connect.Request[api.GetBillingDataRequest]) (*connect.Response[api.GetBillingDataResponse], error)
	GetPaymentHistory(context.Context, *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error)
	GetReceipt(context.Context, *connect.Request[api.GetReceiptRequest]) (*connect.Response[api.GetReceiptResponse], error)
	ExportHistory(context.Context, *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error)
}

// NewBillingServiceClient constructs a client for BillingService. baseURL is the server's
// scheme and host, for example http://localhost:8080.
func NewBillingServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BillingServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &billingServiceClient{
		payBill:           connect.NewClient[api.PayBillRequest, api.PayBillResponse](httpClient, baseURL+BillingServicePayBillProcedure, opts...),
		getDashboard:      connect.NewClient[api.GetDashboardRequest, api.GetDashboardResponse](httpClient, baseURL+BillingServiceGetDashboardProcedure, opts...),
		getBillingData:    connect.NewClient[api.GetBillingDataRequest, api.GetBillingDataResponse](httpClient, baseURL+BillingServiceGetBillingDataProcedure, opts...),
		getPaymentHistory: connect.NewClient[api.GetPaymentHistoryRequest, api.GetPaymentHistoryResponse](httpClient, baseURL+BillingServiceGetPaymentHistoryProcedure, opts...),
		getReceipt:        connect.NewClient[api.GetReceiptRequest, api.GetReceiptResponse](httpClient, baseURL+BillingServiceGetReceiptProcedure, opts...),
		exportHistory:     connect.NewClient[api.ExportHistoryRequest, api.ExportHistoryResponse](httpClient, baseURL+BillingServiceExportHistoryProcedure, opts...),
	}
}

type billingServiceClient struct {
	payBill           *connect.Client[api.PayBillRequest, api.PayBillResponse]
	getDashboard      *connect.Client[api.GetDashboardRequest, api.GetDashboardResponse]
	getBillingData    *connect.Client[api.GetBillingDataRequest, api.GetBillingDataResponse]
	getPaymentHistory *connect.Client[api.GetPaymentHistoryRequest, api.GetPaymentHistoryResponse]
	getReceipt        *connect.Client[api.GetReceiptRequest, api.GetReceiptResponse]
	exportHistory     *connect.Client[api.ExportHistoryRequest, api.ExportHistoryResponse]
}

func (c *billingServiceClient) PayBill(ctx context.Context, req *connect.Request[api.PayBillRequest]) (*connect.Response[api.PayBillResponse], error) {
	return c.payBill.CallUnary(ctx, req)
}

func (c *billingServiceClient) GetDashboard(ctx context.Context, req *connect.Request[api.GetDashboardRequest]) (*connect.Response[api.GetDashboardResponse], error) {
	return c.getDashboard.CallUnary(ctx, req)
}

func (c *billingServiceClient) GetBillingData(ctx context.Context, req *connect.Request[api.GetBillingDataRequest]) (*connect.Response[api.GetBillingDataResponse], error) {
	return c.getBillingData.CallUnary(ctx, req)
}

func (c *billingServiceClient) GetPaymentHistory(ctx context.Context, req *connect.Request[api.GetPaymentHistoryRequest]) (*connect.Response[api.GetPaymentHistoryResponse], error) {
	return c.getPaymentHistory.CallUnary(ctx, req)
}

func (c *billingServiceClient) GetReceipt(ctx context.Context, req *connect.Request[api.GetReceiptRequest]) (*connect.Response[api.GetReceiptResponse], error) {
	return c.getReceipt.CallUnary(ctx, req)
}

func (c *billingServiceClient) ExportHistory(ctx context.Context, req *connect.Request[api.ExportHistoryRequest]) (*connect.Response[api.ExportHistoryResponse], error) {
	return c.exportHistory.CallUnary(ctx, req)
}
