package api

import (
	"context"

	"google.golang.org/grpc"
)

// FilterClient calls FilterService over a client connection.
type FilterClient struct {
	cc grpc.ClientConnInterface
}

// NewFilterClient wraps cc. Every call uses the JSON codec.
func NewFilterClient(cc grpc.ClientConnInterface) *FilterClient {
	return &FilterClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FilterClient) ApplyFilter(ctx context.Context, in *ApplyFilterRequest, opts ...grpc.CallOption) (*ApplyFilterResponse, error) {
	return invoke[ApplyFilterResponse](ctx, c.cc, MethodApplyFilter, in, opts)
}

func (c *FilterClient) ExplainFilter(ctx context.Context, in *ExplainFilterRequest, opts ...grpc.CallOption) (*ExplainFilterResponse, error) {
	return invoke[ExplainFilterResponse](ctx, c.cc, MethodExplainFilter, in, opts)
}

func (c *FilterClient) GetFilter(ctx context.Context, in *GetFilterRequest, opts ...grpc.CallOption) (*GetFilterResponse, error) {
	return invoke[GetFilterResponse](ctx, c.cc, MethodGetFilter, in, opts)
}

func (c *FilterClient) ListFilters(ctx context.Context, in *ListFiltersRequest, opts ...grpc.CallOption) (*ListFiltersResponse, error) {
	return invoke[ListFiltersResponse](ctx, c.cc, MethodListFilters, in, opts)
}

func (c *FilterClient) SaveFilter(ctx context.Context, in *SaveFilterRequest, opts ...grpc.CallOption) (*SaveFilterResponse, error) {
	return invoke[SaveFilterResponse](ctx, c.cc, MethodSaveFilter, in, opts)
}

func (c *FilterClient) DeleteFilter(ctx context.Context, in *DeleteFilterRequest, opts ...grpc.CallOption) (*DeleteFilterResponse, error) {
	return invoke[DeleteFilterResponse](ctx, c.cc, MethodDeleteFilter, in, opts)
}
