package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/surrealdb/surrealdb.go/pkg/constants"

	"github.com/unimart/unimart/pkg/store"
)

// normalizeErr classifies driver and server errors into the store's
// sentinel errors so that callers can react with errors.Is instead of
// string matching. The original error stays in the chain.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	case errors.Is(err, constants.ErrIDInUse):
		return fmt.Errorf("%w: %w", store.ErrDuplicateID, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "already contains"):
		return fmt.Errorf("%w: %w", store.ErrDuplicateID, err)
	case strings.Contains(msg, "quota"), strings.Contains(msg, "resource has been exceeded"),
		strings.Contains(msg, "limit exceeded"):
		return fmt.Errorf("%w: %w", store.ErrQuotaExceeded, err)
	case strings.Contains(msg, "not allowed"), strings.Contains(msg, "not enough permissions"),
		strings.Contains(msg, "iam error"):
		return fmt.Errorf("%w: %w", store.ErrPermissionDenied, err)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "websocket"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "broken pipe"):
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}
	return err
}
