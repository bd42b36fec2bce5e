// Package plugin hosts out-of-process retrieval backends, either as
// go-plugin binaries over net/rpc or as gRPC services.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
)

// RetrievalServiceName is the fully qualified gRPC service name. Messages
// are google.protobuf.Struct holding the JSON form of the domain queries.
const RetrievalServiceName = "smartreviewer.retrieval.v1.Retrieval"

// RetrievalService is the server side of the gRPC contract.
type RetrievalService interface {
	Vector(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Graph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Ontology(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var retrievalServiceDesc = grpc.ServiceDesc{
	ServiceName: RetrievalServiceName,
	HandlerType: (*RetrievalService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Vector", RetrievalService.Vector),
		unaryMethod("Graph", RetrievalService.Graph),
		unaryMethod("Ontology", RetrievalService.Ontology),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartreviewer/retrieval/v1/retrieval.proto",
}

func unaryMethod(name string, call func(RetrievalService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(RetrievalService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + RetrievalServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// RegisterRetrievalServer exposes backend on s.
func RegisterRetrievalServer(s grpc.ServiceRegistrar, backend retrieval.Backend) {
	s.RegisterService(&retrievalServiceDesc, &GRPCServer{Impl: backend})
}

// GRPCServer wraps a retrieval.Backend as a gRPC service.
type GRPCServer struct {
	Impl retrieval.Backend
}

var _ RetrievalService = (*GRPCServer)(nil)

func (s *GRPCServer) Vector(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q retrieval.VectorQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.Impl.SimilaritySearch(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(out)
}

func (s *GRPCServer) Graph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q retrieval.GraphQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.Impl.GraphTraverse(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(out)
}

func (s *GRPCServer) Ontology(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q retrieval.OntologyQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.Impl.OntologyCoverage(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(out)
}

// GRPCClient is a retrieval.Backend backed by a remote RetrievalService.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

var _ retrieval.Backend = (*GRPCClient)(nil)

func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// DialGRPC connects to a plaintext retrieval service.
func DialGRPC(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial retrieval service %s: %w", addr, err)
	}
	return conn, nil
}

func (c *GRPCClient) SimilaritySearch(ctx context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	var out retrieval.Response
	if err := c.invoke(ctx, "Vector", "vector", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) GraphTraverse(ctx context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	var out retrieval.Response
	if err := c.invoke(ctx, "Graph", "graph", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) OntologyCoverage(ctx context.Context, q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	var out retrieval.CoverageReport
	if err := c.invoke(ctx, "Ontology", "ontology", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method, source string, q, out any) error {
	in, err := toStruct(q)
	if err != nil {
		return retrieval.NewError(retrieval.FailureInvalidInput, source, err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+RetrievalServiceName+"/"+method, in, resp); err != nil {
		return retrieval.NewError(failureFromStatus(err), source, err)
	}
	if err := fromStruct(resp, out); err != nil {
		return retrieval.NewError(retrieval.FailureInvalidResponse, source, err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, out any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func toStatus(err error) error {
	var code codes.Code
	switch retrieval.Classify(err) {
	case retrieval.FailureInvalidInput:
		code = codes.InvalidArgument
	case retrieval.FailureTimeout:
		code = codes.DeadlineExceeded
	case retrieval.FailureInvalidResponse:
		code = codes.DataLoss
	default:
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

func failureFromStatus(err error) retrieval.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return retrieval.FailureTimeout
	}
	switch status.Code(err) {
	case codes.InvalidArgument:
		return retrieval.FailureInvalidInput
	case codes.DeadlineExceeded, codes.Canceled:
		return retrieval.FailureTimeout
	case codes.DataLoss:
		return retrieval.FailureInvalidResponse
	default:
		return retrieval.FailureUnavailable
	}
}
