package port

import (
	"context"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// Notifier is the fire-and-forget notification boundary. Implementations must
// never block a transition or cause it to roll back; delivery failures are
// logged on their side.
type Notifier interface {
	Notify(ctx context.Context, ref entity.Ref, event string, from, to workflow.State)
}
