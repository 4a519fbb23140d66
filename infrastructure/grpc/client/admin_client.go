package client

import (
	"context"
	"gym-chat/infrastructure/grpc/adminpb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AdminClient calls the operator service with a bearer token on every request.
type AdminClient struct {
	conn   *grpc.ClientConn
	client *adminpb.AdminServiceClient
	token  string
}

func NewAdminClient(addr, token string) (*AdminClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &AdminClient{conn: conn, client: adminpb.NewAdminServiceClient(conn), token: token}, nil
}

func (c *AdminClient) Close() error {
	return c.conn.Close()
}

func (c *AdminClient) withToken(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// BroadcastSystemNotification returns the number of connections reached.
func (c *AdminClient) BroadcastSystemNotification(ctx context.Context, title, body, category string) (int64, error) {
	req, err := structpb.NewStruct(map[string]any{"title": title, "body": body, "category": category})
	if err != nil {
		return 0, err
	}
	resp, err := c.client.BroadcastSystemNotification(c.withToken(ctx), req)
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

// PushToRole accepts any payload structpb can represent.
func (c *AdminClient) PushToRole(ctx context.Context, role string, payload any) (int64, error) {
	req, err := structpb.NewStruct(map[string]any{"role": role, "payload": payload})
	if err != nil {
		return 0, err
	}
	resp, err := c.client.PushToRole(c.withToken(ctx), req)
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

// ExpirySweep returns the number of messages removed.
func (c *AdminClient) ExpirySweep(ctx context.Context) (int64, error) {
	resp, err := c.client.ExpirySweep(c.withToken(ctx), &emptypb.Empty{})
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

func (c *AdminClient) Presence(ctx context.Context, userID string) (int64, error) {
	resp, err := c.client.Presence(c.withToken(ctx), wrapperspb.String(userID))
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

func (c *AdminClient) UnreadCount(ctx context.Context, userID string) (int64, error) {
	resp, err := c.client.UnreadCount(c.withToken(ctx), wrapperspb.String(userID))
	if err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}
