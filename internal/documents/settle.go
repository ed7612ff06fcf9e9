package documents

import (
	"fmt"
	"sync"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/telemetry"
)

// settle runs the blob and metadata operations concurrently and waits for
// both. A nil blob operation is skipped.
func settle(blobOp, metaOp func() error) (blobErr, metaErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if blobOp != nil {
			blobErr = guard(blobOp)
		}
	}()
	go func() {
		defer wg.Done()
		metaErr = guard(metaOp)
	}()
	wg.Wait()
	return blobErr, metaErr
}

// applyCleanupPolicy decides the outcome of a settled blob+metadata pair.
// The metadata result is authoritative; a blob failure is only logged.
func applyCleanupPolicy(op string, fields map[string]any, blobErr, metaErr error) error {
	if blobErr != nil {
		logFields := copyFields(fields)
		logFields["error"] = blobErr
		telemetry.Warn("document."+op+".blob_cleanup_failed", logFields)
	}
	return metaErr
}

func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = apperr.Internal("unexpected failure", fmt.Errorf("panic: %v", rec))
		}
	}()
	return fn()
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	return out
}
