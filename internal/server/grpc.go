package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/model"
)

// SpecServiceName is the full name of the gRPC service.
const SpecServiceName = "specs.v1.SpecService"

// specServiceServer is the method set served under SpecServiceName. Every
// method exchanges google.protobuf.Struct messages carrying the same JSON
// documents as the HTTP API.
type specServiceServer interface {
	ResolveFields(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAttributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var specServiceDesc = grpc.ServiceDesc{
	ServiceName: SpecServiceName,
	HandlerType: (*specServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveFields", Handler: unaryHandler("ResolveFields", specServiceServer.ResolveFields)},
		{MethodName: "ListAttributes", Handler: unaryHandler("ListAttributes", specServiceServer.ListAttributes)},
		{MethodName: "Resolve", Handler: unaryHandler("Resolve", specServiceServer.Resolve)},
		{MethodName: "Apply", Handler: unaryHandler("Apply", specServiceServer.Apply)},
		{MethodName: "Validate", Handler: unaryHandler("Validate", specServiceServer.Validate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "specs/v1/specs.proto",
}

// unaryHandler adapts a Struct-in, Struct-out method to a grpc method handler.
func unaryHandler(
	method string,
	call func(specServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + SpecServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(specServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(specServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the SpecService, health, reflection, and returns the server
// ready to serve.
func NewGRPCServer(specServer *SpecServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(specServer.logger),
			LoggingInterceptor(specServer.logger),
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&specServiceDesc, specServer)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)

	return srv
}

// ResolveFields returns the bindable fields of a record type.
// Request: {"reference_type"}. Response: {"fields"}.
func (s *SpecServer) ResolveFields(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		ReferenceType string `json:"reference_type"`
	}
	if err := structToRequest(in, &req); err != nil {
		return nil, grpcError(err)
	}
	fields, err := s.engine.ResolveFields(ctx, req.ReferenceType)
	if err != nil {
		return nil, grpcError(err)
	}
	if fields == nil {
		fields = []string{}
	}
	return s.reply(map[string]any{"fields": fields})
}

// ListAttributes returns the free-form attribute names offered for a row set.
// Request: {"reference_type", "rows"}. Response: {"attributes"}.
func (s *SpecServer) ListAttributes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req attributesInput
	if err := structToRequest(in, &req); err != nil {
		return nil, grpcError(err)
	}
	names, err := s.engine.ListAttributes(ctx, req.ReferenceType, req.Rows)
	if err != nil {
		return nil, grpcError(err)
	}
	return s.reply(map[string]any{"attributes": names})
}

// Resolve computes the effective rows of a (specification, record) pair.
func (s *SpecServer) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req engine.ResolveRequest
	if err := structToRequest(in, &req); err != nil {
		return nil, grpcError(err)
	}
	res, err := s.engine.Resolve(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return s.reply(res)
}

// Apply persists a submitted row set.
func (s *SpecServer) Apply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req engine.ApplyRequest
	if err := structToRequest(in, &req); err != nil {
		return nil, grpcError(err)
	}
	if req.SpecificationID == "" {
		return nil, grpcError(inputError("specification is required"))
	}
	result, err := s.engine.Apply(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	s.publish(ctx, events.TopicValuesApplied, events.ValuesApplied{
		SpecificationID: req.SpecificationID,
		ReferenceType:   req.ReferenceType,
		References:      []string{req.ReferenceID},
		Written:         result.Written,
		Rows:            req.Rows,
	})
	return s.reply(result)
}

// Validate checks a row set for duplicate attributes.
// Request: {"rows"}. Response: {"valid": true}.
func (s *SpecServer) Validate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Rows []model.Row `json:"rows"`
	}
	if err := structToRequest(in, &req); err != nil {
		return nil, grpcError(err)
	}
	if err := s.engine.Validate(req.Rows); err != nil {
		return nil, grpcError(err)
	}
	return s.reply(map[string]any{"valid": true})
}

func (s *SpecServer) reply(v any) (*structpb.Struct, error) {
	out, err := responseToStruct(v)
	if err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}
