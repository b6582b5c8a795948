package poolgrpc

import (
	"context"
	"net"
	"time"

	"github.com/blockberries/asyncpool/types"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Default and maximum chunk payload sizes for snapshot streaming.
const (
	DefaultChunkSize = 64 * 1024
	maxChunkSize     = 1024 * 1024
)

// SnapshotSource is the server's view of the pool being served. It is
// satisfied by *pool.Pool; nodes that serve a pinned historical
// snapshot instead can provide their own implementation (see the
// archive subpackage).
//
// The server does not serialize access: the owning node must not
// mutate the source concurrently with an export, exactly as it must
// serialize its own pool operations.
type SnapshotSource interface {
	// Snapshot returns the canonical snapshot bytes.
	Snapshot() []byte
	// StateHash returns the BLAKE3 digest of the snapshot bytes.
	StateHash() types.Hash
	// Len returns the number of pending messages.
	Len() int
}

// Compile-time interface check.
var _ PoolSyncServiceServer = (*GRPCServer)(nil)

// GRPCServer serves pool snapshots to bootstrapping peers.
type GRPCServer struct {
	src     SnapshotSource
	metrics *Metrics
}

// NewGRPCServer creates a bootstrap server over the given source.
// A nil metrics installs a fresh instance on a private registry.
func NewGRPCServer(src SnapshotSource, metrics *Metrics) *GRPCServer {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry(), "asyncpool")
	}
	return &GRPCServer{src: src, metrics: metrics}
}

// Register adds the pool-sync service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterPoolSyncServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

func (s *GRPCServer) PoolInfo(_ context.Context, _ *PoolInfoRequest) (*PoolInfoResponse, error) {
	s.metrics.PoolMessages.Set(float64(s.src.Len()))
	return &PoolInfoResponse{
		Version:      types.SnapshotVersion,
		MessageCount: uint64(s.src.Len()),
		StateHash:    s.src.StateHash(),
	}, nil
}

func (s *GRPCServer) ExportPool(req *ExportPoolRequest, stream grpc.ServerStream) error {
	chunkSize := int(req.ChunkSize)
	switch {
	case chunkSize <= 0:
		chunkSize = DefaultChunkSize
	case chunkSize > maxChunkSize:
		return status.Errorf(codes.InvalidArgument, "chunk size %d exceeds maximum %d", chunkSize, maxChunkSize)
	}

	start := time.Now()
	snap := s.src.Snapshot()
	s.metrics.PoolMessages.Set(float64(s.src.Len()))

	index := uint32(0)
	for off := 0; ; off += chunkSize {
		end := min(off+chunkSize, len(snap))
		chunk := &SnapshotChunk{Index: index, Data: snap[off:end]}
		if err := stream.SendMsg(chunk); err != nil {
			return err
		}
		s.metrics.ChunksSent.Inc()
		s.metrics.ExportBytes.Add(float64(end - off))
		index++
		if end == len(snap) {
			break
		}
	}

	s.metrics.ExportsTotal.Inc()
	s.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	return nil
}
