package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/specs/internal/model"
)

// specService is the full name of the gRPC service.
const specService = "/specs.v1.SpecService/"

// GRPCClient implements SyncClient using the gRPC transport. Messages are
// google.protobuf.Struct documents with the same shape as the HTTP API.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// When token is non-empty it is sent as a Bearer token on every call.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) ResolveFields(ctx context.Context, recordType string) ([]string, error) {
	var resp struct {
		Fields []string `json:"fields"`
	}
	if err := c.invoke(ctx, "ResolveFields", map[string]any{"reference_type": recordType}, &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

func (c *GRPCClient) ListAttributes(ctx context.Context, recordType string, rows []model.Row) ([]string, error) {
	var resp struct {
		Attributes []string `json:"attributes"`
	}
	if err := c.invoke(ctx, "ListAttributes", map[string]any{"reference_type": recordType, "rows": rows}, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

func (c *GRPCClient) Resolve(ctx context.Context, req *ResolveRequest) (*model.Resolution, error) {
	var res model.Resolution
	if err := c.invoke(ctx, "Resolve", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) Apply(ctx context.Context, req *ApplyRequest) (*model.ApplyResult, error) {
	var result model.ApplyResult
	if err := c.invoke(ctx, "Apply", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *GRPCClient) Validate(ctx context.Context, rows []model.Row) error {
	return c.invoke(ctx, "Validate", map[string]any{"rows": rows}, nil)
}

// invoke sends req as a Struct to method and decodes the Struct reply into
// resp. A nil resp discards the reply.
func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, specService+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	b, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(b, resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return s, nil
}
