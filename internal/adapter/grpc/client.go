package grpc

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/simaogato/standing-orders/internal/usecase/scheduler"
)

// Client calls the standing order service
type Client struct {
	cc     grpc.ClientConnInterface
	closer io.Closer
	token  string
}

// NewClient wraps an existing connection
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

// Dial opens a plaintext connection to addr
func Dial(addr, token string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c := NewClient(conn, token)
	c.closer = conn
	return c, nil
}

// Close releases the connection opened by Dial
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", c.token)
	}
	return c.cc.Invoke(ctx, FullMethod(method), req, resp)
}

// ExecuteDueNow runs the orders due on asOf (YYYY-MM-DD), or today when empty
func (c *Client) ExecuteDueNow(ctx context.Context, asOf string) (*scheduler.ExecutionReport, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodExecuteDueNow, wrapperspb.String(asOf), resp); err != nil {
		return nil, err
	}
	return reportFromStruct(resp)
}

// CreateOrder creates an order from its wire fields
func (c *Client) CreateOrder(ctx context.Context, in map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodCreateOrder, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetOrder retrieves one order
func (c *Client) GetOrder(ctx context.Context, orderID string) (*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodGetOrder, wrapperspb.String(orderID), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateOrder applies the given fields to an order; "order_id" is required
func (c *Client) UpdateOrder(ctx context.Context, in map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodUpdateOrder, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelOrder deactivates an order; false means it was already inactive
func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	resp := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, MethodCancelOrder, wrapperspb.String(orderID), resp); err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

// ListOrders retrieves the orders debiting an account
func (c *Client) ListOrders(ctx context.Context, sourceAccountID string) ([]*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodListOrders, wrapperspb.String(sourceAccountID), resp); err != nil {
		return nil, err
	}
	return listField(resp, "orders"), nil
}

// ListLedger retrieves the latest entries of an account
func (c *Client) ListLedger(ctx context.Context, accountID string, limit int) ([]*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"account_id": accountID,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodListLedger, req, resp); err != nil {
		return nil, err
	}
	return listField(resp, "entries"), nil
}

// ListNotifications retrieves the unread notifications of a recipient
func (c *Client) ListNotifications(ctx context.Context, recipientID string) ([]*structpb.Struct, error) {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, MethodListNotifications, wrapperspb.String(recipientID), resp); err != nil {
		return nil, err
	}
	return listField(resp, "notifications"), nil
}

// MarkNotificationRead marks one notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.invoke(ctx, MethodMarkRead, wrapperspb.String(notificationID), new(wrapperspb.BoolValue))
}

// MarkAllNotificationsRead marks every notification of a recipient as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	resp := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, MethodMarkAllRead, wrapperspb.String(recipientID), resp); err != nil {
		return 0, err
	}
	return resp.GetValue(), nil
}

func listField(s *structpb.Struct, key string) []*structpb.Struct {
	values := s.GetFields()[key].GetListValue().GetValues()
	items := make([]*structpb.Struct, 0, len(values))
	for _, v := range values {
		if item := v.GetStructValue(); item != nil {
			items = append(items, item)
		}
	}
	return items
}
