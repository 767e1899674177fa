package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// Bus dispatches commands to the service layer.
type Bus interface {
	Handle(ctx context.Context, msg domain.Message) ([]any, error)
}

var errInvalidRequest = errors.New("invalid request")

// classify maps a service error onto the HTTP status and gRPC code the
// client sees.
func classify(err error) (int, codes.Code) {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, domain.ErrInvalidSku),
		errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codes.InvalidArgument
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrUnallocatedLine):
		return http.StatusBadRequest, codes.FailedPrecondition
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codes.NotFound
	case errors.Is(err, domain.ErrDuplicateBatch):
		return http.StatusConflict, codes.AlreadyExists
	case errors.Is(err, port.ErrOptimisticLock):
		return http.StatusConflict, codes.Aborted
	default:
		return http.StatusInternalServerError, codes.Internal
	}
}

func validateBatch(ref, sku string) error {
	if ref == "" || sku == "" {
		return fmt.Errorf("%w: ref and sku are required", errInvalidRequest)
	}
	return nil
}

func validateLine(orderID, sku string) error {
	if orderID == "" || sku == "" {
		return fmt.Errorf("%w: orderid and sku are required", errInvalidRequest)
	}
	return nil
}

var etaLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"}

// parseETA accepts a date or an ISO 8601 timestamp. Empty means no eta.
func parseETA(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range etaLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: eta %q is not a date", errInvalidRequest, *s)
}

func firstString(results []any) string {
	if len(results) == 0 {
		return ""
	}
	s, _ := results[0].(string)
	return s
}
