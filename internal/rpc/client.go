package rpc

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote engine.
type Client struct {
	conn   *grpc.ClientConn
	schema *schema
}

// DelegateInfo describes a remote delegate.
type DelegateInfo struct {
	Name   string
	Shape  string
	Policy string
	State  string
	Hits   int64
}

// Dial connects to target. Without options the connection is insecure.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, schema: s}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, fill func(*dynamic.Message) error) (*dynamic.Message, error) {
	md, err := c.schema.method(method)
	if err != nil {
		return nil, err
	}
	req := dynamic.NewMessage(md.GetInputType())
	if fill != nil {
		if err := fill(req); err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
	}
	resp := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Invoke calls the named delegate and returns its result and the state of
// its thunk after the call.
func (c *Client) Invoke(ctx context.Context, name string, args ...any) (any, string, error) {
	resp, err := c.call(ctx, "Invoke", func(req *dynamic.Message) error {
		if err := req.TrySetFieldByName("name", name); err != nil {
			return err
		}
		for _, a := range args {
			v, err := c.schema.encodeValue(a)
			if err != nil {
				return err
			}
			if err := req.TryAddRepeatedFieldByName("args", v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	state, _ := resp.GetFieldByName("state").(string)
	result, ok := resp.GetFieldByName("result").(*dynamic.Message)
	if !ok {
		return nil, state, nil
	}
	v, err := decodeValue(result)
	return v, state, err
}

// List returns the delegates registered on the remote engine.
func (c *Client) List(ctx context.Context) ([]DelegateInfo, error) {
	resp, err := c.call(ctx, "List", nil)
	if err != nil {
		return nil, err
	}
	items, err := messages(resp.GetFieldByName("delegates"))
	if err != nil {
		return nil, err
	}
	out := make([]DelegateInfo, len(items))
	for i, m := range items {
		out[i] = DelegateInfo{
			Name:   m.GetFieldByName("name").(string),
			Shape:  m.GetFieldByName("shape").(string),
			Policy: m.GetFieldByName("policy").(string),
			State:  m.GetFieldByName("state").(string),
			Hits:   m.GetFieldByName("hits").(int64),
		}
	}
	return out, nil
}
