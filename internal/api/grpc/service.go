// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package grpc 提供 gRPC 服务端，能力与 HTTP 对齐；请求与响应均为 google.protobuf.Struct，字段名同 HTTP JSON。
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"house-ai/internal/orchestrator"
	herrors "house-ai/pkg/errors"
	"house-ai/pkg/log"
)

// ServiceName 完整服务名
const ServiceName = "house.v1.ChatService"

const maxMessageLen = 4000

// ChatServiceServer house.v1.ChatService 的服务端接口
type ChatServiceServer interface {
	Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Compare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc 手写的服务描述，等价于 protoc 生成的 _ChatService_serviceDesc
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Chat", ChatServiceServer.Chat),
		unary("Recommend", ChatServiceServer.Recommend),
		unary("Compare", ChatServiceServer.Compare),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "house/v1/chat.proto",
}

func unary(name string, call func(ChatServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ChatServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Service gRPC 层依赖的编排能力
type Service interface {
	Chat(ctx context.Context, req orchestrator.ChatRequest) *orchestrator.ChatResponse
	Recommend(ctx context.Context, req orchestrator.RecommendRequest) (*orchestrator.RecommendResponse, error)
	Compare(ctx context.Context, req orchestrator.CompareRequest) (*orchestrator.CompareResponse, error)
}

// Server gRPC 服务端
type Server struct {
	svc    Service
	logger *log.Logger
}

// NewServer 创建 gRPC Server
func NewServer(svc Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	return &Server{svc: svc, logger: logger}
}

// Register 注册 ChatService
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}

// UnaryInterceptor 访问日志拦截器
func (s *Server) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		s.logger.InfoContext(ctx, "grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// Chat 实现 ChatService.Chat
func (s *Server) Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.ChatRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(req.Message); n == 0 || n > maxMessageLen {
		return nil, status.Errorf(codes.InvalidArgument, "message length must be 1..%d", maxMessageLen)
	}
	return toStruct(s.svc.Chat(ctx, req))
}

// Recommend 实现 ChatService.Recommend
func (s *Server) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.RecommendRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.svc.Recommend(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

// Compare 实现 ChatService.Compare
func (s *Server) Compare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.CompareRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if n := len(req.ProductNames); n < 2 || n > 5 {
		return nil, status.Error(codes.InvalidArgument, "product_names must contain 2..5 names")
	}
	resp, err := s.svc.Compare(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(resp)
}

func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// toStatus 按错误类别映射 gRPC 状态码
func toStatus(err error) error {
	var be *orchestrator.BudgetError
	if errors.As(err, &be) {
		return status.Error(codes.ResourceExhausted, be.Message)
	}
	switch herrors.KindOf(err) {
	case herrors.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case herrors.KindBudget:
		return status.Error(codes.ResourceExhausted, err.Error())
	case herrors.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case herrors.KindUpstream:
		return status.Error(codes.Unavailable, strings.TrimSpace(err.Error()))
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
