package poolgrpc

import "github.com/blockberries/asyncpool/types"

// Transport-specific wrapper types for the pool-sync RPCs. These exist
// only at the gRPC serialization boundary; the pool itself never sees
// them.

// PoolInfoRequest is the (empty) request for PoolInfo.
type PoolInfoRequest struct{}

// PoolInfoResponse describes the snapshot a peer currently serves.
type PoolInfoResponse struct {
	// Version is the snapshot format version (types.SnapshotVersion).
	Version uint32 `cramberry:"1"`
	// MessageCount is the number of pending messages in the pool.
	MessageCount uint64 `cramberry:"2"`
	// StateHash is the BLAKE3 digest of the snapshot bytes. The client
	// verifies the reassembled snapshot against it before restoring.
	StateHash types.Hash `cramberry:"3"`
}

// ExportPoolRequest opens a chunked snapshot download.
type ExportPoolRequest struct {
	// ChunkSize is the requested chunk payload size in bytes. Zero
	// means the server default; the server may cap it.
	ChunkSize uint32 `cramberry:"1"`
}

// SnapshotChunk is one piece of a pool snapshot. Chunks are streamed in
// index order; concatenating their Data in order yields the snapshot.
type SnapshotChunk struct {
	Index uint32 `cramberry:"1"`
	Data  []byte `cramberry:"2"`
}
