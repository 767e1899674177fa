package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

// Messages travel as JSON, so the service needs no generated code. Clients
// select the codec with grpc.CallContentSubtype(JSONCodecName).
const (
	JSONCodecName = "json"
	serviceName   = "allocation.v1.AllocationService"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

type AddBatchRequest struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta,omitempty"`
}

type AllocateRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type AllocateResponse struct {
	BatchRef string `json:"batchref"`
}

type DeallocateRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
}

type ChangeBatchQuantityRequest struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

type AllocationsRequest struct {
	OrderID string `json:"orderid"`
}

type AllocationsResponse struct {
	Allocations []domain.AllocationView `json:"allocations"`
}

type Empty struct{}

type AllocationServer interface {
	AddBatch(context.Context, *AddBatchRequest) (*Empty, error)
	Allocate(context.Context, *AllocateRequest) (*AllocateResponse, error)
	Deallocate(context.Context, *DeallocateRequest) (*Empty, error)
	ChangeBatchQuantity(context.Context, *ChangeBatchQuantityRequest) (*Empty, error)
	Allocations(context.Context, *AllocationsRequest) (*AllocationsResponse, error)
}

var AllocationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AllocationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddBatch", AllocationServer.AddBatch),
		unary("Allocate", AllocationServer.Allocate),
		unary("Deallocate", AllocationServer.Deallocate),
		unary("ChangeBatchQuantity", AllocationServer.ChangeBatchQuantity),
		unary("Allocations", AllocationServer.Allocations),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterAllocationServer(s grpc.ServiceRegistrar, srv AllocationServer) {
	s.RegisterService(&AllocationServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(AllocationServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AllocationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AllocationServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AllocationClient calls AllocationServer over conn.
type AllocationClient struct {
	cc grpc.ClientConnInterface
}

func NewAllocationClient(cc grpc.ClientConnInterface) *AllocationClient {
	return &AllocationClient{cc: cc}
}

func (c *AllocationClient) AddBatch(ctx context.Context, in *AddBatchRequest) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "AddBatch", in)
}

func (c *AllocationClient) Allocate(ctx context.Context, in *AllocateRequest) (*AllocateResponse, error) {
	return invoke[AllocateResponse](ctx, c.cc, "Allocate", in)
}

func (c *AllocationClient) Deallocate(ctx context.Context, in *DeallocateRequest) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "Deallocate", in)
}

func (c *AllocationClient) ChangeBatchQuantity(ctx context.Context, in *ChangeBatchQuantityRequest) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "ChangeBatchQuantity", in)
}

func (c *AllocationClient) Allocations(ctx context.Context, in *AllocationsRequest) (*AllocationsResponse, error) {
	return invoke[AllocationsResponse](ctx, c.cc, "Allocations", in)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any) (*Resp, error) {
	out := new(Resp)
	err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(JSONCodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
