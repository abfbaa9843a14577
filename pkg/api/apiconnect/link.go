package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/utilipay/pkg/api"
)

const (
	LinkServiceName                         = "utilipay.v1.LinkService"
	LinkServiceCreateLinkTokenProcedure     = "/utilipay.v1.LinkService/CreateLinkToken"
	LinkServiceExchangePublicTokenProcedure = "/utilipay.v1.LinkService/ExchangePublicToken"
)

// LinkServiceHandler connects a bank account to a utility account.
type LinkServiceHandler interface {
	CreateLinkToken(context.Context, *connect.Request[api.CreateLinkTokenRequest]) (*connect.Response[api.CreateLinkTokenResponse], error)
	ExchangePublicToken(context.Context, *connect.Request[api.ExchangePublicTokenRequest]) (*connect.Response[api.ExchangePublicTokenResponse], error)
}

// NewLinkServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLinkServiceHandler(svc LinkServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createLinkTokenHandler := connect.NewUnaryHandler(LinkServiceCreateLinkTokenProcedure, svc.CreateLinkToken, opts...)
	exchangePublicTokenHandler := connect.NewUnaryHandler(LinkServiceExchangePublicTokenProcedure, svc.ExchangePublicToken, opts...)
	return "/" + LinkServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LinkServiceCreateLinkTokenProcedure:
			createLinkTokenHandler.ServeHTTP(w, r)
		case LinkServiceExchangePublicTokenProcedure:
			exchangePublicTokenHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// LinkServiceClient is a client for LinkService.
type LinkServiceClient interface {
	CreateLinkToken(context.Context, *connect.Request[api.CreateLinkTokenRequest]) (*connect.Response[api.CreateLinkTokenResponse], error)
	ExchangePublicToken(context.Context, *connect.Request[api.ExchangePublicTokenRequest]) (*connect.Response[api.ExchangePublicTokenResponse], error)
}

// NewLinkServiceClient constructs a client for LinkService. baseURL is the server's
// scheme and host, for example http://localhost:8080.
func NewLinkServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LinkServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &linkServiceClient{
		createLinkToken:     connect.NewClient[api.CreateLinkTokenRequest, api.CreateLinkTokenResponse](httpClient, baseURL+LinkServiceCreateLinkTokenProcedure, opts...),
		exchangePublicToken: connect.NewClient[api.ExchangePublicTokenRequest, api.ExchangePublicTokenResponse](httpClient, baseURL+LinkServiceExchangePublicTokenProcedure, opts...),
	}
}

type linkServiceClient struct {
	createLinkToken     *connect.Client[api.CreateLinkTokenRequest, api.CreateLinkTokenResponse]
	exchangePublicToken *connect.Client[api.ExchangePublicTokenRequest, api.ExchangePublicTokenResponse]
}

func (c *linkServiceClient) CreateLinkToken(ctx context.Context, req *connect.Request[api.CreateLinkTokenRequest]) (*connect.Response[api.CreateLinkTokenResponse], error) {
	return c.createLinkToken.CallUnary(ctx, req)
}

func (c *linkServiceClient) ExchangePublicToken(ctx context.Context, req *connect.Request[api.ExchangePublicTokenRequest]) (*connect.Response[api.ExchangePublicTokenResponse], error) {
	return c.exchangePublicToken.CallUnary(ctx, req)
}
