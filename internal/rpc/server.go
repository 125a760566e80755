// Package rpc exposes the SEU pipeline as the pai.cube.v1.CubeService gRPC
// service. Messages are google.protobuf.Struct values carrying the same JSON
// shapes as the HTTP API.
package rpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pai.cube.v1.CubeService"

// #region service-desc
// CubeServiceServer is the server API for CubeService.
type CubeServiceServer interface {
	CreateSEU(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterRaw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputeMeta(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BuildCube(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCube(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(CubeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CubeServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes CubeService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CubeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSEU", CubeServiceServer.CreateSEU),
		unaryHandler("RegisterRaw", CubeServiceServer.RegisterRaw),
		unaryHandler("ComputeMeta", CubeServiceServer.ComputeMeta),
		unaryHandler("BuildCube", CubeServiceServer.BuildCube),
		unaryHandler("GetCube", CubeServiceServer.GetCube),
		unaryHandler("ListEvents", CubeServiceServer.ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pai/cube/v1/cube.proto",
}

// #endregion service-desc

// #region server
// Server adapts an orchestrator.Pipeline to CubeServiceServer.
type Server struct {
	pipeline orchestrator.Pipeline
}

var _ CubeServiceServer = (*Server)(nil)

// NewServer wraps p.
func NewServer(p orchestrator.Pipeline) *Server {
	return &Server{pipeline: p}
}

// NewGRPCServer returns a grpc.Server with CubeService registered and every
// call logged under the "rpc" logger.
func NewGRPCServer(p orchestrator.Pipeline, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger.Named("rpc"))))
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, NewServer(p))
	return s
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}

// #endregion server

// #region handlers
type seuRef struct {
	SEUID string `json:"seu_id"`
}

type metaRef struct {
	SEUID     string `json:"seu_id"`
	ChannelID string `json:"channel_id"`
}

type eventsQuery struct {
	Limit int `json:"limit"`
}

type eventsReply struct {
	Events []logging.Event `json:"events"`
}

// CreateSEU implements CubeServiceServer.
func (s *Server) CreateSEU(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.CreateSEURequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.pipeline.CreateSEU(ctx, req)
	return reply(resp, err)
}

// RegisterRaw implements CubeServiceServer.
func (s *Server) RegisterRaw(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.RegisterRawRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.pipeline.RegisterRaw(ctx, req)
	return reply(resp, err)
}

// ComputeMeta implements CubeServiceServer.
func (s *Server) ComputeMeta(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req metaRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.pipeline.ComputeMeta(ctx, req.SEUID, req.ChannelID)
	return reply(resp, err)
}

// BuildCube implements CubeServiceServer.
func (s *Server) BuildCube(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seuRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.pipeline.BuildCube(ctx, req.SEUID)
	return reply(resp, err)
}

// GetCube implements CubeServiceServer.
func (s *Server) GetCube(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req seuRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	c, err := s.pipeline.GetCube(ctx, req.SEUID)
	return reply(c, err)
}

// ListEvents implements CubeServiceServer.
func (s *Server) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req eventsQuery
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	events, err := s.pipeline.Events(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	if events == nil {
		events = []logging.Event{}
	}
	return reply(eventsReply{Events: events}, nil)
}

func decode(in *structpb.Struct, dst any) error {
	if err := fromStruct(in, dst); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func reply(v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// #endregion handlers
