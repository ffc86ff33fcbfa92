package api

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ApplyFilter runs items through the named filter's rule chain.
// Batches larger than max_batch_size are rejected.
func (s *FilterService) ApplyFilter(ctx context.Context, req *ApplyFilterRequest) (*ApplyFilterResponse, error) {
	if req.Filter == "" {
		return nil, status.Error(codes.InvalidArgument, "filter required")
	}
	if len(req.Items) > s.cfg.MaxBatchSize {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("batch size exceeds maximum of %d items", s.cfg.MaxBatchSize))
	}

	items, err := ToItems(req.Items, s.resolver)
	if err != nil {
		return nil, toStatus(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	out, err := s.catalog.Apply(ctx, req.Filter, items, types.Params(req.Params))
	if err != nil {
		s.logger.Warn("apply filter failed",
			zap.String("filter", req.Filter),
			zap.Int("items", len(items)),
			zap.Error(err))
		return nil, toStatus(err)
	}
	s.logger.Debug("applied filter",
		zap.String("filter", req.Filter),
		zap.Int("in", len(items)),
		zap.Int("out", len(out)),
		zap.Duration("elapsed", time.Since(start)))

	return &ApplyFilterResponse{Items: FromItems(out)}, nil
}

// ExplainFilter compiles the named filter and lists its execution order.
func (s *FilterService) ExplainFilter(ctx context.Context, req *ExplainFilterRequest) (*ExplainFilterResponse, error) {
	if req.Filter == "" {
		return nil, status.Error(codes.InvalidArgument, "filter required")
	}
	chain, err := s.catalog.Compile(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ExplainFilterResponse{Filter: chain.Name(), Rules: chain.Rules()}, nil
}
