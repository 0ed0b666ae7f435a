package actuation

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
)

// DesiredWriter merges a delta into the desired section of a device shadow.
type DesiredWriter interface {
	MergeDesired(ctx context.Context, deviceID string, delta gas.Delta) error
}

// Request is one reconciliation trigger.
type Request struct {
	// DeviceID is the thing name of the device.
	DeviceID string
	// Risk is the raw gas risk classification carried by the event.
	Risk string
}

// Reconciler applies the risk policy to device shadows.
type Reconciler struct {
	// shadow receives desired-state deltas.
	shadow DesiredWriter
	// policy maps classifications to deltas.
	policy gas.Policy
}

// NewReconciler creates a reconciler. A nil policy selects gas.DefaultPolicy.
func NewReconciler(shadow DesiredWriter, policy gas.Policy) *Reconciler {
	if policy == nil {
		policy = gas.DefaultPolicy()
	}

	return &Reconciler{
		shadow: shadow,
		policy: policy,
	}
}

// Reconcile writes the delta for req.Risk into the shadow of req.DeviceID.
// Unknown classifications yield a no-op result without any write.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) *gas.ReconcileResult {
	deviceID := strings.TrimSpace(req.DeviceID)
	ctx = logger.WithKV(logger.WithName(ctx, "reconciler"), "device_id", deviceID)

	logger.InfoKV(ctx, "Reconciliation requested", "risk", req.Risk)

	if deviceID == "" {
		return r.fail(ctx, deviceID, gas.MissingField(gas.DeviceIDAttribute))
	}

	if strings.TrimSpace(req.Risk) == "" {
		return r.fail(ctx, deviceID, gas.MissingField(gas.GasLevelState))
	}

	// The policy matches the classification exactly as the device publishes it.
	risk := gas.Classification(req.Risk)

	delta := r.policy.DeltaFor(risk)
	if len(delta) == 0 {
		logger.InfoKV(ctx, "No actuation required", "risk", risk)

		return &gas.ReconcileResult{
			Result: gas.Skipped(deviceID, "no changes applied"),
		}
	}

	if err := r.shadow.MergeDesired(ctx, deviceID, delta); err != nil {
		return r.fail(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrShadowWrite, err))
	}

	logger.InfoKV(ctx, "Desired state updated", "risk", risk, "delta", delta)

	return &gas.ReconcileResult{
		Result: gas.Succeeded(deviceID, "desired state updated for "+deviceID),
		Delta:  delta,
	}
}

func (r *Reconciler) fail(ctx context.Context, deviceID string, err error) *gas.ReconcileResult {
	result := gas.Failed(deviceID, err)
	logger.ErrorKV(ctx, "Reconciliation failed", "status", result.Status, "error", err)

	return &gas.ReconcileResult{Result: result}
}
