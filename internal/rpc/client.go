package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
)

// #region client-struct
// Client is a CubeService client. It satisfies orchestrator.Pipeline, so a
// remote controller can stand in for a local one.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

var _ orchestrator.Pipeline = (*Client)(nil)
// #endregion client-struct

// #region constructor
// NewClient connects to a CubeService at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection. The caller
// owns cc; Close is a no-op.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region calls
// CreateSEU opens a unit on the remote controller.
func (c *Client) CreateSEU(ctx context.Context, req orchestrator.CreateSEURequest) (orchestrator.CreateSEUResponse, error) {
	var resp orchestrator.CreateSEUResponse
	err := c.call(ctx, "CreateSEU", req, &resp)
	return resp, err
}

// RegisterRaw registers one channel raw.
func (c *Client) RegisterRaw(ctx context.Context, req orchestrator.RegisterRawRequest) (orchestrator.RegisterRawResponse, error) {
	var resp orchestrator.RegisterRawResponse
	err := c.call(ctx, "RegisterRaw", req, &resp)
	return resp, err
}

// ComputeMeta computes and stores one channel meta.
func (c *Client) ComputeMeta(ctx context.Context, seuID, channelID string) (orchestrator.ComputeMetaResponse, error) {
	var resp orchestrator.ComputeMetaResponse
	err := c.call(ctx, "ComputeMeta", metaRef{SEUID: seuID, ChannelID: channelID}, &resp)
	return resp, err
}

// BuildCube builds and stores the cube for seuID.
func (c *Client) BuildCube(ctx context.Context, seuID string) (orchestrator.BuildCubeResponse, error) {
	var resp orchestrator.BuildCubeResponse
	err := c.call(ctx, "BuildCube", seuRef{SEUID: seuID}, &resp)
	return resp, err
}

// GetCube fetches a stored cube.
func (c *Client) GetCube(ctx context.Context, seuID string) (cube.Cube, error) {
	var resp cube.Cube
	err := c.call(ctx, "GetCube", seuRef{SEUID: seuID}, &resp)
	return resp, err
}

// Events returns the last limit domain events.
func (c *Client) Events(ctx context.Context, limit int) ([]logging.Event, error) {
	var resp eventsReply
	if err := c.call(ctx, "ListEvents", eventsQuery{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return fmt.Errorf("%s rpc: %w", method, fromStatus(err))
	}
	return fromStruct(out, resp)
}
// #endregion calls
