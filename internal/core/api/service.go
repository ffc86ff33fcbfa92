// Package api provides the gRPC FilterService.
package api

import (
	"context"
	"fmt"

	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/core/logging"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "itemfilter.v1.FilterService"

// Full method names, used by the auth interceptor.
const (
	MethodApplyFilter   = "/" + ServiceName + "/ApplyFilter"
	MethodExplainFilter = "/" + ServiceName + "/ExplainFilter"
	MethodGetFilter     = "/" + ServiceName + "/GetFilter"
	MethodListFilters   = "/" + ServiceName + "/ListFilters"
	MethodSaveFilter    = "/" + ServiceName + "/SaveFilter"
	MethodDeleteFilter  = "/" + ServiceName + "/DeleteFilter"
)

// AdminMethods change stored filters and require an API key.
var AdminMethods = []string{MethodSaveFilter, MethodDeleteFilter}

// FilterServer is the server API for FilterService.
type FilterServer interface {
	ApplyFilter(context.Context, *ApplyFilterRequest) (*ApplyFilterResponse, error)
	ExplainFilter(context.Context, *ExplainFilterRequest) (*ExplainFilterResponse, error)
	GetFilter(context.Context, *GetFilterRequest) (*GetFilterResponse, error)
	ListFilters(context.Context, *ListFiltersRequest) (*ListFiltersResponse, error)
	SaveFilter(context.Context, *SaveFilterRequest) (*SaveFilterResponse, error)
	DeleteFilter(context.Context, *DeleteFilterRequest) (*DeleteFilterResponse, error)
}

// FilterStore persists filters. Implemented by *db.FilterStore.
type FilterStore interface {
	Save(ctx context.Context, f *filter.Filter) error
	Delete(ctx context.Context, name string) error
}

// FilterService implements FilterServer.
// Thin orchestration layer over the catalog, the store and the journal.
type FilterService struct {
	catalog  *filter.Catalog
	store    FilterStore
	journal  *Journal
	resolver types.IdentifierResolver
	cfg      *config.ServerConfig
	logger   *zap.Logger
}

// NewFilterService creates service instance with dependencies.
// journal and logger may be nil.
func NewFilterService(catalog *filter.Catalog, store FilterStore, journal *Journal, cfg *config.ServerConfig, logger *zap.Logger) (*FilterService, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	return &FilterService{
		catalog:  catalog,
		store:    store,
		journal:  journal,
		resolver: types.GUIDResolver{},
		cfg:      cfg,
		logger:   logging.OrNop(logger),
	}, nil
}

// Register adds the service to s.
func Register(s grpc.ServiceRegistrar, srv FilterServer) {
	s.RegisterService(&FilterServiceDesc, srv)
}

// FilterServiceDesc describes FilterService for grpc.Server.
var FilterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FilterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplyFilter", Handler: unaryHandler(MethodApplyFilter, FilterServer.ApplyFilter)},
		{MethodName: "ExplainFilter", Handler: unaryHandler(MethodExplainFilter, FilterServer.ExplainFilter)},
		{MethodName: "GetFilter", Handler: unaryHandler(MethodGetFilter, FilterServer.GetFilter)},
		{MethodName: "ListFilters", Handler: unaryHandler(MethodListFilters, FilterServer.ListFilters)},
		{MethodName: "SaveFilter", Handler: unaryHandler(MethodSaveFilter, FilterServer.SaveFilter)},
		{MethodName: "DeleteFilter", Handler: unaryHandler(MethodDeleteFilter, FilterServer.DeleteFilter)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "itemfilter/v1/filter_service",
}

// unaryHandler adapts a FilterServer method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(FilterServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FilterServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FilterServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
