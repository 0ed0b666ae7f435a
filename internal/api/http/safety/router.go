package safety

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/control"
	"github.com/oshokin/gas-guard/internal/service/recorder"
	"github.com/oshokin/gas-guard/internal/version"
)

// errNegativeTimestamp is returned for timestamps before the epoch.
var errNegativeTimestamp = errors.New("timestamp must be a non-negative integer")

// Route parameters.
const (
	paramDeviceID  = "device_id"
	paramTimestamp = "timestamp"
)

// Reconciler applies the risk policy.
type Reconciler interface {
	Reconcile(ctx context.Context, req actuation.Request) *gas.ReconcileResult
}

// Recorder snapshots reported state into the event log.
type Recorder interface {
	Record(ctx context.Context, req recorder.Request) *gas.RecordResult
}

// Controller serves manual requests.
type Controller interface {
	SetActuator(ctx context.Context, req control.ActuatorRequest) *gas.ControlResult
	Status(ctx context.Context, deviceID string) *gas.StatusResult
}

// reconcileBody is the body of POST /v1/devices/:device_id/reconcile.
type reconcileBody struct {
	// Risk is the gas risk classification.
	Risk string `json:"risk"`
	// GasLevelState is accepted as an alias of Risk.
	GasLevelState string `json:"gas_level_state"`
}

// recordBody is the optional body of POST /v1/devices/:device_id/events.
type recordBody struct {
	// Timestamp is the observation point in epoch seconds.
	Timestamp *int64 `json:"timestamp"`
}

// actuatorBody is the body of POST /v1/devices/:device_id/actuators.
type actuatorBody struct {
	// Actuator is the desired-state attribute.
	Actuator string `json:"actuator"`
	// State is the requested value.
	State string `json:"state"`
}

// handler binds HTTP requests to the services.
type handler struct {
	reconciler Reconciler
	recorder   Recorder
	controller Controller
	events     eventlog.Reader
}

// NewRouter builds the gin engine serving the API.
func NewRouter(reconciler Reconciler, recorder Recorder, controller Controller, events eventlog.Reader) *gin.Engine {
	h := &handler{
		reconciler: reconciler,
		recorder:   recorder,
		controller: controller,
		events:     events,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", h.health)

	devices := router.Group("/v1/devices/:" + paramDeviceID)
	devices.POST("/reconcile", h.reconcile)
	devices.POST("/events", h.record)
	devices.GET("/events/:"+paramTimestamp, h.event)
	devices.POST("/actuators", h.setActuator)
	devices.GET("/state", h.state)

	return router
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{gas.FieldStatus: "ok", "version": version.Short()})
}

func (h *handler) reconcile(c *gin.Context) {
	var body reconcileBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)

		return
	}

	risk := body.Risk
	if risk == "" {
		risk = body.GasLevelState
	}

	result := h.reconciler.Reconcile(c.Request.Context(), actuation.Request{
		DeviceID: c.Param(paramDeviceID),
		Risk:     risk,
	})

	c.JSON(result.Code(), result.Fields())
}

func (h *handler) record(c *gin.Context) {
	var body recordBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)

		return
	}

	if body.Timestamp != nil && *body.Timestamp < 0 {
		badRequest(c, errNegativeTimestamp)

		return
	}

	result := h.recorder.Record(c.Request.Context(), recorder.Request{
		DeviceID:  c.Param(paramDeviceID),
		Timestamp: body.Timestamp,
	})

	c.JSON(result.Code(), result.Fields())
}

func (h *handler) event(c *gin.Context) {
	deviceID := c.Param(paramDeviceID)

	timestamp, err := strconv.ParseInt(c.Param(paramTimestamp), 10, 64)
	if err != nil {
		badRequest(c, err)

		return
	}

	if timestamp < 0 {
		badRequest(c, errNegativeTimestamp)

		return
	}

	record, err := h.events.Get(c.Request.Context(), deviceID, timestamp)
	if err != nil {
		if errors.Is(err, eventlog.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorFields(deviceID, "not-found", http.StatusNotFound, err))

			return
		}

		logger.ErrorKV(c.Request.Context(), "Failed to read event record", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError,
			errorFields(deviceID, string(gas.StatusInternalError), http.StatusInternalServerError, err))

		return
	}

	c.JSON(http.StatusOK, record.Fields())
}

func (h *handler) setActuator(c *gin.Context) {
	var body actuatorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)

		return
	}

	result := h.controller.SetActuator(c.Request.Context(), control.ActuatorRequest{
		DeviceID: c.Param(paramDeviceID),
		Actuator: body.Actuator,
		State:    body.State,
	})

	c.JSON(result.Code(), result.Fields())
}

func (h *handler) state(c *gin.Context) {
	result := h.controller.Status(c.Request.Context(), c.Param(paramDeviceID))

	c.JSON(result.Code(), result.Fields())
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest,
		errorFields(c.Param(paramDeviceID), string(gas.StatusBadRequest), http.StatusBadRequest, err))
}

func errorFields(deviceID, status string, code int, err error) gin.H {
	return gin.H{
		gas.FieldStatus:   status,
		gas.FieldCode:     code,
		gas.FieldMessage:  err.Error(),
		gas.FieldDeviceID: deviceID,
	}
}

// requestLogger attaches the route to the request logger and logs each completed request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		ctx := logger.WithKV(c.Request.Context(), "http_route", c.FullPath())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		logger.InfoKV(ctx, "HTTP request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(started))
	}
}
