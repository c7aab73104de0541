package rpc

import "context"

// ResourceTracker is the controller capability consumed by the node status
// updater. The RPC transport and authentication handshake behind it are
// out of this package's scope; Client is one concrete realization over
// gRPC with mTLS.
type ResourceTracker interface {
	RegisterNodeManager(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	NodeHeartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error)
	UnRegisterNodeManager(ctx context.Context, req *UnregisterRequest) error
	Close() error
}
