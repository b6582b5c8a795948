package poolgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "github.com/blockberries/asyncpool.v1.PoolSyncService"

// PoolSyncServiceServer is the server-side interface for the pool
// bootstrap gRPC service.
type PoolSyncServiceServer interface {
	PoolInfo(context.Context, *PoolInfoRequest) (*PoolInfoResponse, error)
	ExportPool(*ExportPoolRequest, grpc.ServerStream) error
}

// RegisterPoolSyncServiceServer registers the PoolSyncServiceServer on
// a gRPC server.
func RegisterPoolSyncServiceServer(s *grpc.Server, srv PoolSyncServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerPoolInfo(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(PoolInfoRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(PoolSyncServiceServer).PoolInfo(ctx, req)
}

func handlerExportPool(srv any, stream grpc.ServerStream) error {
	req := new(ExportPoolRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(PoolSyncServiceServer).ExportPool(req, stream)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for pool sync.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PoolSyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PoolInfo", Handler: handlerPoolInfo},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExportPool",
			Handler:       handlerExportPool,
			ServerStreams: true,
			ClientStreams: false,
		},
	},
	Metadata: "github.com/blockberries/asyncpool/v1/service.cram",
}
