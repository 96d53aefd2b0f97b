package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
)

// Metadata keys understood by the gRPC surface.
const (
	MDFormatHint  = "x-format-hint"
	MDFilename    = "x-filename"
	MDRequestID   = "x-request-id"
	MDJobID       = "x-job-id"
	MDContentHash = "x-content-hash"
	MDCache       = "x-cache"
)

const (
	ExtractionServiceName = "contracts.v1.ExtractionService"

	extractMethod = "/" + ExtractionServiceName + "/Extract"
	submitMethod  = "/" + ExtractionServiceName + "/Submit"
	getJobMethod  = "/" + ExtractionServiceName + "/GetJob"
)

// ExtractionServer is the gRPC contract. Documents travel as raw bytes and
// results as JSON-shaped Structs so no generated stubs are needed.
type ExtractionServer interface {
	Extract(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
	Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	GetJob(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ExtractionServiceDesc registers an ExtractionServer on a grpc.Server.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "GetJob", Handler: getJobHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contracts/v1/extraction.proto",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*wrapperspb.BytesValue))
	})
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	})
}

func getJobHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).GetJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getJobMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).GetJob(ctx, req.(*wrapperspb.StringValue))
	})
}

// GRPCServer adapts ExtractionService to ExtractionServer.
type GRPCServer struct {
	svc    *ExtractionService
	logger *slog.Logger
}

func NewGRPCServer(svc *ExtractionService, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCServer{svc: svc, logger: logger}
}

// Register attaches the service to s.
func (g *GRPCServer) Register(s *grpc.Server) {
	s.RegisterService(&ExtractionServiceDesc, g)
}

func (g *GRPCServer) Extract(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	out, err := g.svc.Extract(ctx, requestFromMetadata(ctx, in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(
		MDJobID, out.JobID.String(),
		MDContentHash, out.ContentHash,
		MDCache, cacheHeader(out.Cached),
	))
	return toStruct(out.Result)
}

func (g *GRPCServer) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	id, err := g.svc.Submit(ctx, requestFromMetadata(ctx, in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id.String()), nil
}

func (g *GRPCServer) GetJob(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	job, err := g.svc.GetJob(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(job)
}

func requestFromMetadata(ctx context.Context, data []byte) core.Request {
	md, _ := metadata.FromIncomingContext(ctx)
	return core.Request{
		Data:       data,
		Name:       firstMD(md, MDFilename),
		FormatHint: firstMD(md, MDFormatHint),
	}
}

func firstMD(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(common.GRPCCode(err), err.Error())
}

// toStruct round-trips v through JSON so its json tags define the Struct shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return s, nil
}

// UnaryInterceptor tags each call with a request id, logs it and converts panics to Internal.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)
		requestID := firstMD(md, MDRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(MDRequestID, requestID))

		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"error", r,
					"request_id", requestID,
					"method", info.FullMethod,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, fmt.Sprintf("internal error (request %s)", requestID))
			}
			code := status.Code(err)
			attrs := []any{
				"method", info.FullMethod,
				"code", code.String(),
				"latency_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			}
			switch code {
			case codes.OK:
				logger.Info("grpc.request", attrs...)
			case codes.Internal, codes.Unknown, codes.Unavailable:
				logger.Error("grpc.request", append(attrs, "err", err)...)
			default:
				logger.Warn("grpc.request", append(attrs, "err", err)...)
			}
		}()
		return handler(ctx, req)
	}
}

// ExtractionClient calls a remote ExtractionService.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

// Extract sends one document and returns the result as a Struct along with
// the response header metadata.
func (c *ExtractionClient) Extract(ctx context.Context, data []byte, filename, formatHint string) (*structpb.Struct, metadata.MD, error) {
	ctx = outgoing(ctx, filename, formatHint)
	var header metadata.MD
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, extractMethod, wrapperspb.Bytes(data), out, grpc.Header(&header)); err != nil {
		return nil, header, err
	}
	return out, header, nil
}

// Submit queues one document and returns its job id.
func (c *ExtractionClient) Submit(ctx context.Context, data []byte, filename, formatHint string) (string, error) {
	ctx = outgoing(ctx, filename, formatHint)
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, submitMethod, wrapperspb.Bytes(data), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// GetJob fetches a job record.
func (c *ExtractionClient) GetJob(ctx context.Context, id string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getJobMethod, wrapperspb.String(id), out); err != nil {
		return nil, err
	}
	return out, nil
}

func outgoing(ctx context.Context, filename, formatHint string) context.Context {
	var kv []string
	if filename != "" {
		kv = append(kv, MDFilename, filename)
	}
	if formatHint != "" {
		kv = append(kv, MDFormatHint, formatHint)
	}
	if id := common.RequestIDFromContext(ctx); id != "" {
		kv = append(kv, MDRequestID, id)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
