package rpcutil

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ServiceHandler mounts unary procedures under one service path, the same shape generated
// connect code exposes (path prefix plus http.Handler).
type ServiceHandler struct {
	name string
	mux  *http.ServeMux
	opts []connect.HandlerOption
}

func NewServiceHandler(name string, opts ...connect.HandlerOption) *ServiceHandler {
	return &ServiceHandler{
		name: name,
		mux:  http.NewServeMux(),
		opts: append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...),
	}
}

// Procedure returns the full procedure path for a method of this service.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

func (s *ServiceHandler) Path() string {
	return "/" + s.name + "/"
}

func (s *ServiceHandler) Mount() (string, http.Handler) {
	return s.Path(), s
}

func (s *ServiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handle registers fn as a unary procedure. Requests are validated before fn runs and
// errors are translated with ToConnectError.
func Handle[Req, Res any](s *ServiceHandler, method string, fn func(ctx context.Context, req *Req) (*Res, error)) {
	procedure := Procedure(s.name, method)
	h := connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		if err := Validate(req.Msg); err != nil {
			return nil, ToConnectError(procedure, err)
		}
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, ToConnectError(procedure, err)
		}
		return connect.NewResponse(res), nil
	}, s.opts...)
	s.mux.Handle(procedure, h)
}

// Empty is the response of procedures that return nothing.
type Empty struct{}

func bearerToken(h http.Header) string {
	if auth := h.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(h.Get("X-Access-Token"))
}
