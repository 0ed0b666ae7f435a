package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
)

// ActuatorRequest asks for one actuator to be moved to a state.
type ActuatorRequest struct {
	// DeviceID is the thing name of the device.
	DeviceID string
	// Actuator is the desired-state attribute, e.g. valve_state.
	Actuator string
	// State is the requested value, e.g. closed.
	State string
}

// Controller serves manual requests on top of the shadow store.
type Controller struct {
	// shadow is read to check the current risk and written with the requested state.
	shadow shadow.Store
}

// NewController creates a controller.
func NewController(store shadow.Store) *Controller {
	return &Controller{
		shadow: store,
	}
}

// SetActuator writes the requested actuator state unless the reported gas
// level makes manual control unsafe.
func (c *Controller) SetActuator(ctx context.Context, req ActuatorRequest) *gas.ControlResult {
	var (
		deviceID = strings.TrimSpace(req.DeviceID)
		actuator = strings.ToLower(strings.TrimSpace(req.Actuator))
		state    = strings.ToLower(strings.TrimSpace(req.State))
	)

	ctx = logger.WithKV(logger.WithName(ctx, "control"), "device_id", deviceID)

	logger.InfoKV(ctx, "Manual actuation requested", "actuator", actuator, "state", state)

	switch {
	case deviceID == "":
		return c.fail(ctx, deviceID, gas.MissingField(gas.DeviceIDAttribute))
	case actuator == "":
		return c.fail(ctx, deviceID, gas.MissingField("actuator"))
	case state == "":
		return c.fail(ctx, deviceID, gas.MissingField("state"))
	case !gas.ValidManualState(actuator, state):
		return c.fail(ctx, deviceID, fmt.Errorf("%w: %s=%s", gas.ErrUnsupportedActuator, actuator, state))
	}

	document, err := c.shadow.Get(ctx, deviceID)
	if err != nil {
		return c.fail(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrShadowRead, err))
	}

	reported, _ := document.Reported[gas.GasLevelState].(string)
	if !gas.ParseClassification(reported).AllowsManualControl() {
		return c.fail(ctx, deviceID, fmt.Errorf("%w: gas level state is %q", gas.ErrActuationBlocked, reported))
	}

	delta := gas.Delta{actuator: state}

	if err = c.shadow.MergeDesired(ctx, deviceID, delta); err != nil {
		return c.fail(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrShadowWrite, err))
	}

	logger.InfoKV(ctx, "Manual actuation applied", "delta", delta)

	return &gas.ControlResult{
		Result: gas.Succeeded(deviceID, fmt.Sprintf("%s set to %s for %s", actuator, state, deviceID)),
		Delta:  delta,
	}
}

// Status returns the reported and desired sections of the device shadow.
func (c *Controller) Status(ctx context.Context, deviceID string) *gas.StatusResult {
	deviceID = strings.TrimSpace(deviceID)
	ctx = logger.WithKV(logger.WithName(ctx, "control"), "device_id", deviceID)

	logger.Info(ctx, "Device status requested")

	if deviceID == "" {
		return failStatus(ctx, deviceID, gas.MissingField(gas.DeviceIDAttribute))
	}

	document, err := c.shadow.Get(ctx, deviceID)
	if err != nil {
		return failStatus(ctx, deviceID, fmt.Errorf("%w: %w", gas.ErrShadowRead, err))
	}

	return &gas.StatusResult{
		Result:   gas.Succeeded(deviceID, "device state of "+deviceID),
		Reported: document.Reported,
		Desired:  document.Desired,
	}
}

func (c *Controller) fail(ctx context.Context, deviceID string, err error) *gas.ControlResult {
	result := gas.Failed(deviceID, err)
	logger.ErrorKV(ctx, "Manual actuation failed", "status", result.Status, "error", err)

	return &gas.ControlResult{Result: result}
}

func failStatus(ctx context.Context, deviceID string, err error) *gas.StatusResult {
	result := gas.Failed(deviceID, err)
	logger.ErrorKV(ctx, "Device status failed", "status", result.Status, "error", err)

	return &gas.StatusResult{Result: result}
}
