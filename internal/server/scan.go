package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/joseph-ayodele/pantry-receipts/internal/common"
	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/quota"
)

const (
	ServiceName        = "pantry.scan.v1.ScanService"
	scanFullMethod     = "/" + ServiceName + "/Scan"
	getUsageFullMethod = "/" + ServiceName + "/GetUsage"

	// UserIDHeader is consulted when a request message leaves user_id empty.
	UserIDHeader = "x-user-id"
)

// ScanServiceServer is the server API for pantry.scan.v1.ScanService.
type ScanServiceServer interface {
	Scan(context.Context, *ScanRequest) (*ScanResponse, error)
	GetUsage(context.Context, *GetUsageRequest) (*GetUsageResponse, error)
}

// Scanner is the orchestrator surface the service needs.
type Scanner interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (pipeline.ScanResult, error)
	Usage(ctx context.Context, userID string) (quota.State, error)
}

type ScanService struct {
	scanner Scanner
	logger  *slog.Logger
}

var _ ScanServiceServer = (*ScanService)(nil)

func NewScanService(scanner Scanner, logger *slog.Logger) *ScanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanService{scanner: scanner, logger: logger}
}

func (s *ScanService) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	userID := userIDFrom(ctx, req.UserID)
	if userID == "" {
		s.logger.Error("scan request missing user_id")
		return nil, common.InvalidArgumentErrorf("user_id is required (or set %s metadata)", UserIDHeader)
	}

	res, err := s.scanner.Scan(ctx, pipeline.ScanRequest{
		UserID:       userID,
		Image:        req.Image,
		PreferVision: req.PreferVision,
	})
	if err != nil {
		s.logger.Info("scan rejected", "user_id", userID, "code", pipeline.CodeOf(err), "error", err)
		return nil, toStatus(ctx, err)
	}
	return &ScanResponse{
		EventID: res.EventID.String(),
		Items:   res.Items,
		Mode:    res.Mode,
		Outcome: res.Outcome,
		Usage:   res.Usage,
	}, nil
}

func (s *ScanService) GetUsage(ctx context.Context, req *GetUsageRequest) (*GetUsageResponse, error) {
	userID := userIDFrom(ctx, req.UserID)
	if userID == "" {
		return nil, common.InvalidArgumentErrorf("user_id is required (or set %s metadata)", UserIDHeader)
	}
	st, err := s.scanner.Usage(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get usage", "user_id", userID, "error", err)
		return nil, toStatus(ctx, err)
	}
	return &GetUsageResponse{Usage: st}, nil
}

func userIDFrom(ctx context.Context, fromMsg string) string {
	if id := strings.TrimSpace(fromMsg); id != "" {
		return id
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(UserIDHeader); len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
	}
	return ""
}

// RegisterScanServiceServer registers srv on s under ScanServiceDesc.
func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: scanHandler},
		{MethodName: "GetUsage", Handler: getUsageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pantry/scan/v1/scan.proto",
}

func scanHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServiceServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scanFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServiceServer).Scan(ctx, req.(*ScanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getUsageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUsageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServiceServer).GetUsage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUsageFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServiceServer).GetUsage(ctx, req.(*GetUsageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ScanClient calls ScanService with the JSON codec.
type ScanClient struct {
	cc grpc.ClientConnInterface
}

func NewScanClient(cc grpc.ClientConnInterface) *ScanClient {
	return &ScanClient{cc: cc}
}

func (c *ScanClient) Scan(ctx context.Context, in *ScanRequest, opts ...grpc.CallOption) (*ScanResponse, error) {
	out := new(ScanResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, scanFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScanClient) GetUsage(ctx context.Context, in *GetUsageRequest, opts ...grpc.CallOption) (*GetUsageResponse, error) {
	out := new(GetUsageResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, getUsageFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
