package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/forgemesh/nodeagent/pkg/security"
)

// DefaultMaxConnectWait bounds how long consecutive Unavailable failures
// are tolerated before a call is reported as connect-exhausted, when
// DialConfig.MaxConnectWait is left at its zero value.
const DefaultMaxConnectWait = 5 * time.Minute

// method names on the controller's ResourceTracker service. The service
// definition itself (and its protobuf descriptor) lives with the
// controller; this package only needs the method paths to drive
// grpc.ClientConn.Invoke directly, since generating or vendoring the
// descriptor is outside this repository's scope.
const (
	methodRegister   = "/resourcetracker.ResourceTracker/RegisterNodeManager"
	methodHeartbeat  = "/resourcetracker.ResourceTracker/NodeHeartbeat"
	methodUnregister = "/resourcetracker.ResourceTracker/UnRegisterNodeManager"
)

// Client is a ResourceTracker backed by a gRPC connection secured with
// mutual TLS. gRPC dials lazily and retries a transport-level Unavailable
// failure on its own, so this client tracks how long that condition has
// persisted across calls and reports connect-exhaustion once it has gone
// on longer than the configured budget.
type Client struct {
	conn *grpc.ClientConn
	opts []grpc.CallOption

	maxConnectWait time.Duration

	connectMu        sync.Mutex
	unavailableSince time.Time
}

// DialConfig describes how to reach the controller and which certificate
// material to present.
type DialConfig struct {
	ControllerAddr string
	CertDir        string
	DialTimeout    time.Duration

	// MaxConnectWait bounds how long consecutive Unavailable failures are
	// tolerated before RegisterNodeManager/NodeHeartbeat report a
	// connect-exhaustion error instead of a plain transient one. Zero uses
	// DefaultMaxConnectWait.
	MaxConnectWait time.Duration
}

// Dial establishes an mTLS connection to the controller, loading the node
// certificate and CA bundle from CertDir.
func Dial(cfg DialConfig) (*Client, error) {
	cert, err := security.LoadCertFromFile(cfg.CertDir)
	if err != nil {
		return nil, fmt.Errorf("load node certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(cfg.CertDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}

	conn, err := grpc.NewClient(cfg.ControllerAddr, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}

	maxConnectWait := cfg.MaxConnectWait
	if maxConnectWait <= 0 {
		maxConnectWait = DefaultMaxConnectWait
	}

	return &Client{
		conn:           conn,
		opts:           []grpc.CallOption{grpc.CallContentSubtype(codecName)},
		maxConnectWait: maxConnectWait,
	}, nil
}

// classifyConnectFailure tracks how long err's underlying gRPC status has
// continuously been Unavailable and promotes it to a ConnectExhaustedError
// once that has exceeded maxConnectWait. Any other status code resets the
// tracking: the failure isn't connectivity-related in the first place.
func (c *Client) classifyConnectFailure(err error) error {
	if status.Code(err) != codes.Unavailable {
		c.resetConnectFailure()
		return err
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	if c.unavailableSince.IsZero() {
		c.unavailableSince = time.Now()
		return err
	}
	if time.Since(c.unavailableSince) >= c.maxConnectWait {
		return NewConnectExhaustedError(err)
	}
	return err
}

// resetConnectFailure clears the Unavailable tracking window, called on
// any successful call: the transport is reachable again.
func (c *Client) resetConnectFailure() {
	c.connectMu.Lock()
	c.unavailableSince = time.Time{}
	c.connectMu.Unlock()
}

func (c *Client) RegisterNodeManager(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	in := wrap(req)
	var out envelope[RegisterResponse]
	if err := c.conn.Invoke(ctx, methodRegister, &in, &out, c.opts...); err != nil {
		return nil, fmt.Errorf("registerNodeManager: %w", c.classifyConnectFailure(err))
	}
	c.classifyConnectFailure(nil)
	return &out.Payload, nil
}

func (c *Client) NodeHeartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	in := wrap(req)
	var out envelope[HeartbeatResponse]
	if err := c.conn.Invoke(ctx, methodHeartbeat, &in, &out, c.opts...); err != nil {
		return nil, fmt.Errorf("nodeHeartbeat: %w", c.classifyConnectFailure(err))
	}
	c.classifyConnectFailure(nil)
	return &out.Payload, nil
}

func (c *Client) UnRegisterNodeManager(ctx context.Context, req *UnregisterRequest) error {
	in := wrap(req)
	var out envelope[struct{}]
	if err := c.conn.Invoke(ctx, methodUnregister, &in, &out, c.opts...); err != nil {
		return fmt.Errorf("unRegisterNodeManager: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

var _ ResourceTracker = (*Client)(nil)
