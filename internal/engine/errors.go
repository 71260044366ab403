package engine

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// EngineError reports a lifecycle or usage misuse (calling Crawl twice
// concurrently, ClearAll mid-run) rather than a per-page crawl failure.
type EngineError struct {
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error: %s", e.Message)
}

func (e *EngineError) Severity() failure.Severity {
	return failure.SeverityFatal
}
