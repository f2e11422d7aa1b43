package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/velocity/internal/core/domain"
)

// The owner service is registered by hand and carried over a JSON codec,
// so clients select it with the "json" content subtype.
const (
	codecName        = "json"
	ownerServiceName = "velocity.owner.v1.OwnerService"

	upsertOwnerMethod = "/" + ownerServiceName + "/UpsertOwner"
	getOwnerMethod    = "/" + ownerServiceName + "/GetOwner"
	listOwnersMethod  = "/" + ownerServiceName + "/ListOwners"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

type UpsertOwnerRequest struct {
	Owner domain.Owner `json:"owner"`
}

type GetOwnerRequest struct {
	ID string `json:"id"`
}

// OwnerReply carries a nil Owner when the requested owner does not exist.
type OwnerReply struct {
	Owner *domain.Owner `json:"owner"`
}

type ListOwnersRequest struct {
	CompanyID string `json:"companyId,omitempty"`
}

type ListOwnersReply struct {
	Owners []domain.Owner `json:"owners"`
}

type OwnerServiceServer interface {
	UpsertOwner(context.Context, *UpsertOwnerRequest) (*OwnerReply, error)
	GetOwner(context.Context, *GetOwnerRequest) (*OwnerReply, error)
	ListOwners(context.Context, *ListOwnersRequest) (*ListOwnersReply, error)
}

func RegisterOwnerServiceServer(s grpc.ServiceRegistrar, srv OwnerServiceServer) {
	s.RegisterService(&ownerServiceDesc, srv)
}

var ownerServiceDesc = grpc.ServiceDesc{
	ServiceName: ownerServiceName,
	HandlerType: (*OwnerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpsertOwner",
			Handler:    unaryHandler(upsertOwnerMethod, OwnerServiceServer.UpsertOwner),
		},
		{
			MethodName: "GetOwner",
			Handler:    unaryHandler(getOwnerMethod, OwnerServiceServer.GetOwner),
		},
		{
			MethodName: "ListOwners",
			Handler:    unaryHandler(listOwnersMethod, OwnerServiceServer.ListOwners),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(OwnerServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OwnerServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OwnerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// OwnerClient calls the owner service over an existing connection.
type OwnerClient struct {
	cc grpc.ClientConnInterface
}

func NewOwnerClient(cc grpc.ClientConnInterface) *OwnerClient {
	return &OwnerClient{cc: cc}
}

func (c *OwnerClient) UpsertOwner(ctx context.Context, in *UpsertOwnerRequest, opts ...grpc.CallOption) (*OwnerReply, error) {
	out := new(OwnerReply)
	if err := c.invoke(ctx, upsertOwnerMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OwnerClient) GetOwner(ctx context.Context, in *GetOwnerRequest, opts ...grpc.CallOption) (*OwnerReply, error) {
	out := new(OwnerReply)
	if err := c.invoke(ctx, getOwnerMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OwnerClient) ListOwners(ctx context.Context, in *ListOwnersRequest, opts ...grpc.CallOption) (*ListOwnersReply, error) {
	out := new(ListOwnersReply)
	if err := c.invoke(ctx, listOwnersMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OwnerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
