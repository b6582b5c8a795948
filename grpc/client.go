package poolgrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/blockberries/asyncpool"
	"github.com/blockberries/asyncpool/pool"
	"github.com/blockberries/asyncpool/types"

	"google.golang.org/grpc"
	"lukechampine.com/blake3"
)

// Client fetches pool snapshots from a bootstrap peer over gRPC using
// cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a bootstrap peer.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("asyncpool client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// PoolInfo returns the peer's snapshot descriptor.
func (c *Client) PoolInfo(ctx context.Context) (PoolInfoResponse, error) {
	req := &PoolInfoRequest{}
	resp := new(PoolInfoResponse)
	if err := c.cc.Invoke(ctx, fullMethod("PoolInfo"), req, resp); err != nil {
		return PoolInfoResponse{}, err
	}
	return *resp, nil
}

// FetchSnapshot downloads the peer's snapshot bytes, verifying chunk
// ordering and the advertised state hash. chunkSize zero requests the
// server default.
func (c *Client) FetchSnapshot(ctx context.Context, chunkSize uint32) ([]byte, error) {
	info, err := c.PoolInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info.Version != types.SnapshotVersion {
		return nil, asyncpool.NewDecodeError("snapshot",
			fmt.Sprintf("peer serves unsupported version %d (want %d)", info.Version, types.SnapshotVersion))
	}

	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "ExportPool",
		ServerStreams: true,
	}, fullMethod("ExportPool"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&ExportPoolRequest{ChunkSize: chunkSize}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	next := uint32(0)
	for {
		chunk := new(SnapshotChunk)
		if err := stream.RecvMsg(chunk); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if chunk.Index != next {
			return nil, asyncpool.NewDecodeError("snapshot",
				fmt.Sprintf("chunk %d out of order (want %d)", chunk.Index, next))
		}
		buf.Write(chunk.Data)
		next++
	}

	data := buf.Bytes()
	if types.Hash(blake3.Sum256(data)) != info.StateHash {
		return nil, asyncpool.NewDecodeError("snapshot", "reassembled bytes do not match advertised state hash")
	}
	return data, nil
}

// FetchPool downloads a snapshot and reconstructs the pool from it.
// The restored pool is byte-identical to the peer's: restoring is
// strict and rejects any non-canonical input.
func (c *Client) FetchPool(ctx context.Context, chunkSize uint32) (*pool.Pool, error) {
	data, err := c.FetchSnapshot(ctx, chunkSize)
	if err != nil {
		return nil, err
	}
	return pool.RestoreSnapshot(data)
}
