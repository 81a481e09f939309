package control

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafters-studio/motion-coordinator/internal/audit"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
)

// #region client-struct
// Client calls a remote control service.
type Client struct {
	conn grpc.ClientConnInterface
	// closer is nil when the connection is owned by the caller.
	closer func() error
}

// #endregion client-struct

// #region constructor
// Dial connects to addr. Extra options are applied after the default
// insecure transport credentials.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close shuts down a connection created by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// #endregion constructor

// #region calls
func (c *Client) Pause(ctx context.Context) error {
	if err := c.conn.Invoke(ctx, fullMethod("Pause"), &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("pause rpc: %w", err)
	}
	return nil
}

func (c *Client) Resume(ctx context.Context) error {
	if err := c.conn.Invoke(ctx, fullMethod("Resume"), &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("resume rpc: %w", err)
	}
	return nil
}

// UpdateBudget sends patch and returns the budget in force afterwards.
func (c *Client) UpdateBudget(ctx context.Context, patch motion.BudgetPatch) (motion.Budget, error) {
	in, err := toStruct(patch)
	if err != nil {
		return motion.Budget{}, err
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, fullMethod("UpdateBudget"), in, out); err != nil {
		return motion.Budget{}, fmt.Errorf("update budget rpc: %w", err)
	}
	var b motion.Budget
	if err := fromStruct(out, &b); err != nil {
		return motion.Budget{}, err
	}
	return b, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, fullMethod("Status"), &emptypb.Empty{}, out); err != nil {
		return Status{}, fmt.Errorf("status rpc: %w", err)
	}
	var st Status
	if err := fromStruct(out, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (c *Client) Audit(ctx context.Context) (audit.Result, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, fullMethod("Audit"), &emptypb.Empty{}, out); err != nil {
		return audit.Result{}, fmt.Errorf("audit rpc: %w", err)
	}
	var r audit.Result
	if err := fromStruct(out, &r); err != nil {
		return audit.Result{}, err
	}
	return r, nil
}

// #endregion calls
