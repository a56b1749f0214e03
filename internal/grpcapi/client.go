// client.go implements the CLI side of the refresh channel. A Client
// satisfies lifecycle.Notifier: refresh calls are fire-and-forget, so a
// missing or dead view server never fails a CLI mutation.
package grpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const callTimeout = 2 * time.Second

// Client talks to a resident view server over its unix socket.
type Client struct {
	conn   *grpc.ClientConn
	logger zerolog.Logger
}

// Dial connects to the view server socket. Connection establishment is lazy;
// Dial succeeds even when no server is running yet.
func Dial(socketPath string, logger zerolog.Logger) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing view server: %w", err)
	}
	return &Client{
		conn:   conn,
		logger: logger.With().Str("subsystem", "rpc-client").Logger(),
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes one RPC method and decodes its result into out, when out is
// non-nil.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	req := &RPCRequest{Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding params: %w", err)
		}
		req.Params = data
	}

	var resp RPCResponse
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/Call", req, &resp)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s: %s", method, resp.Error)
	}
	if out != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding result: %w", err)
		}
	}
	return nil
}

// RefreshSessions tells a running view server to reload its session view.
// Failures only mean no server is listening; they are logged at debug and
// dropped.
func (c *Client) RefreshSessions() {
	c.fireAndForget("sessions.refresh")
}

// RefreshIntegrations tells a running view server to reload its
// integration view.
func (c *Client) RefreshIntegrations() {
	c.fireAndForget("integrations.refresh")
}

func (c *Client) fireAndForget(method string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := c.Call(ctx, method, nil, nil); err != nil {
		c.logger.Debug().Err(err).Str("method", method).Msg("view server unreachable")
	}
}
