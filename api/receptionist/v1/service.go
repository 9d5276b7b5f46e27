package receptionistv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ServiceName is the fully-qualified service name.
const ServiceName = "gatemesh.receptionist.v1.ReceptionistService"

// Procedure paths.
const (
	GetContactsProcedure         = "/" + ServiceName + "/GetContacts"
	HeartbeatProcedure           = "/" + ServiceName + "/Heartbeat"
	ResolveProcedure             = "/" + ServiceName + "/Resolve"
	DeliverProcedure             = "/" + ServiceName + "/Deliver"
	WatchClusterClientsProcedure = "/" + ServiceName + "/WatchClusterClients"
)

// ReceptionistServiceHandler is implemented by the receptionist server.
type ReceptionistServiceHandler interface {
	GetContacts(context.Context, *connect.Request[GetContactsRequest]) (*connect.Response[GetContactsResponse], error)
	Heartbeat(context.Context, *connect.Request[HeartbeatRequest]) (*connect.Response[HeartbeatResponse], error)
	Resolve(context.Context, *connect.Request[ResolveRequest]) (*connect.Response[ResolveResponse], error)
	Deliver(context.Context, *connect.Request[DeliverRequest]) (*connect.Response[DeliverResponse], error)
	WatchClusterClients(context.Context, *connect.Request[WatchClusterClientsRequest], *connect.ServerStream[ClusterClientEvent]) error
}

// NewReceptionistServiceHandler builds an HTTP handler serving svc. It
// returns the path to mount the handler on.
func NewReceptionistServiceHandler(svc ReceptionistServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	getContacts := connect.NewUnaryHandler(GetContactsProcedure, svc.GetContacts, opts...)
	heartbeat := connect.NewUnaryHandler(HeartbeatProcedure, svc.Heartbeat, opts...)
	resolve := connect.NewUnaryHandler(ResolveProcedure, svc.Resolve, opts...)
	deliver := connect.NewUnaryHandler(DeliverProcedure, svc.Deliver, opts...)
	watch := connect.NewServerStreamHandler(WatchClusterClientsProcedure, svc.WatchClusterClients, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetContactsProcedure:
			getContacts.ServeHTTP(w, r)
		case HeartbeatProcedure:
			heartbeat.ServeHTTP(w, r)
		case ResolveProcedure:
			resolve.ServeHTTP(w, r)
		case DeliverProcedure:
			deliver.ServeHTTP(w, r)
		case WatchClusterClientsProcedure:
			watch.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ReceptionistServiceClient calls one receptionist.
type ReceptionistServiceClient struct {
	getContacts *connect.Client[GetContactsRequest, GetContactsResponse]
	heartbeat   *connect.Client[HeartbeatRequest, HeartbeatResponse]
	resolve     *connect.Client[ResolveRequest, ResolveResponse]
	deliver     *connect.Client[DeliverRequest, DeliverResponse]
	watch       *connect.Client[WatchClusterClientsRequest, ClusterClientEvent]
}

// NewReceptionistServiceClient creates a client for the receptionist at
// baseURL, e.g. http://10.0.0.1:7400.
func NewReceptionistServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ReceptionistServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)

	return &ReceptionistServiceClient{
		getContacts: connect.NewClient[GetContactsRequest, GetContactsResponse](httpClient, baseURL+GetContactsProcedure, opts...),
		heartbeat:   connect.NewClient[HeartbeatRequest, HeartbeatResponse](httpClient, baseURL+HeartbeatProcedure, opts...),
		resolve:     connect.NewClient[ResolveRequest, ResolveResponse](httpClient, baseURL+ResolveProcedure, opts...),
		deliver:     connect.NewClient[DeliverRequest, DeliverResponse](httpClient, baseURL+DeliverProcedure, opts...),
		watch:       connect.NewClient[WatchClusterClientsRequest, ClusterClientEvent](httpClient, baseURL+WatchClusterClientsProcedure, opts...),
	}
}

// GetContacts calls ReceptionistService.GetContacts.
func (c *ReceptionistServiceClient) GetContacts(ctx context.Context, req *connect.Request[GetContactsRequest]) (*connect.Response[GetContactsResponse], error) {
	return c.getContacts.CallUnary(ctx, req)
}

// Heartbeat calls ReceptionistService.Heartbeat.
func (c *ReceptionistServiceClient) Heartbeat(ctx context.Context, req *connect.Request[HeartbeatRequest]) (*connect.Response[HeartbeatResponse], error) {
	return c.heartbeat.CallUnary(ctx, req)
}

// Resolve calls ReceptionistService.Resolve.
func (c *ReceptionistServiceClient) Resolve(ctx context.Context, req *connect.Request[ResolveRequest]) (*connect.Response[ResolveResponse], error) {
	return c.resolve.CallUnary(ctx, req)
}

// Deliver calls ReceptionistService.Deliver.
func (c *ReceptionistServiceClient) Deliver(ctx context.Context, req *connect.Request[DeliverRequest]) (*connect.Response[DeliverResponse], error) {
	return c.deliver.CallUnary(ctx, req)
}

// WatchClusterClients calls ReceptionistService.WatchClusterClients.
func (c *ReceptionistServiceClient) WatchClusterClients(ctx context.Context, req *connect.Request[WatchClusterClientsRequest]) (*connect.ServerStreamForClient[ClusterClientEvent], error) {
	return c.watch.CallServerStream(ctx, req)
}
