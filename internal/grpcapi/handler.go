// handler.go dispatches JSON-RPC-style requests over gRPC unary calls.
// The single-method generic descriptor avoids protoc generation for an API
// this small; the payloads are plain JSON via the registered codec.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/virga-tools/virga/internal/filter"
)

// ServiceName is the gRPC service identity of the view server.
const ServiceName = "virga.v1.VirgaService"

// RPCRequest is a generic JSON-RPC-style request.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is a generic JSON-RPC-style response.
type RPCResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Handler dispatches RPC requests to the Service.
type Handler struct {
	service  *Service
	dispatch map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// NewHandler creates a handler backed by the given service.
func NewHandler(svc *Service) *Handler {
	h := &Handler{service: svc}
	h.dispatch = map[string]handlerFunc{
		// Workspace
		"workspace.get": h.handleGetWorkspace,

		// Refresh channel
		"sessions.refresh":     h.handleRefreshSessions,
		"integrations.refresh": h.handleRefreshIntegrations,

		// Session view
		"sessions.list":    h.handleListSessions,
		"sessions.visible": h.handleVisibleSessions,

		// Filters and segments
		"filters.apply":  h.handleApplyFilters,
		"filters.sort":   h.handleToggleSort,
		"segments.apply": h.handleApplySegment,

		// Integrations
		"integrations.list": h.handleListIntegrations,

		// Audit
		"audit.verify": h.handleVerifyAudit,
	}
	return h
}

// Handle processes one request and returns a response.
func (h *Handler) Handle(ctx context.Context, req *RPCRequest) *RPCResponse {
	fn, ok := h.dispatch[req.Method]
	if !ok {
		return &RPCResponse{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		return &RPCResponse{Error: err.Error()}
	}

	resultJSON, _ := json.Marshal(result)
	return &RPCResponse{Result: resultJSON}
}

// RegisterWithGRPC registers the handler on a gRPC server under a generic
// single-method descriptor. Clients invoke /virga.v1.VirgaService/Call with
// an RPCRequest and receive an RPCResponse.
func (h *Handler) RegisterWithGRPC(s *grpc.Server) {
	sd := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*virgaServiceHandler)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Call",
				Handler:    h.grpcCallHandler,
			},
		},
		Streams: []grpc.StreamDesc{},
	}
	s.RegisterService(&sd, h)
}

// virgaServiceHandler is the interface type for gRPC service registration.
type virgaServiceHandler interface{}

func (h *Handler) grpcCallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req RPCRequest
	if err := dec(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	resp := h.Handle(ctx, &req)
	return resp, nil
}

// --- Handler implementations ---

func (h *Handler) handleGetWorkspace(_ context.Context, _ json.RawMessage) (any, error) {
	return h.service.GetWorkspace(), nil
}

func (h *Handler) handleRefreshSessions(_ context.Context, _ json.RawMessage) (any, error) {
	if err := h.service.RefreshSessions(); err != nil {
		return nil, err
	}
	return map[string]bool{"refreshed": true}, nil
}

func (h *Handler) handleRefreshIntegrations(_ context.Context, _ json.RawMessage) (any, error) {
	if err := h.service.RefreshIntegrations(); err != nil {
		return nil, err
	}
	return map[string]bool{"refreshed": true}, nil
}

func (h *Handler) handleListSessions(_ context.Context, _ json.RawMessage) (any, error) {
	return h.service.ListSessions(), nil
}

func (h *Handler) handleVisibleSessions(_ context.Context, _ json.RawMessage) (any, error) {
	return h.service.VisibleSessions()
}

func (h *Handler) handleApplyFilters(_ context.Context, params json.RawMessage) (any, error) {
	var g filter.Group
	if params != nil {
		if err := json.Unmarshal(params, &g); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	return h.service.ApplyFilters(g)
}

type sortParam struct {
	Column string `json:"column"`
}

func (h *Handler) handleToggleSort(_ context.Context, params json.RawMessage) (any, error) {
	var p sortParam
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return h.service.ToggleSort(filter.Column(p.Column))
}

type nameParam struct {
	Name string `json:"name"`
}

func (h *Handler) handleApplySegment(_ context.Context, params json.RawMessage) (any, error) {
	var p nameParam
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return h.service.ApplySegment(p.Name)
}

func (h *Handler) handleListIntegrations(_ context.Context, _ json.RawMessage) (any, error) {
	return h.service.ListIntegrations(), nil
}

func (h *Handler) handleVerifyAudit(_ context.Context, _ json.RawMessage) (any, error) {
	valid, count, err := h.service.VerifyAuditChain()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"valid": valid,
		"count": count,
	}, nil
}
