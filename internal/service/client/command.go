package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/logger"
	"github.com/oshokin/gas-guard/internal/service/common"
)

// Call performs one SafetyService request.
type Call func(ctx context.Context, client *common.Client) (*structpb.Struct, error)

// Options configures a gasctl invocation.
type Options struct {
	// ConfigPath to YAML settings file; the file is optional.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Name describes the call in logs.
	Name string

	// Call is the request to perform.
	Call Call

	// Wait keeps retrying while the server is unreachable.
	Wait bool

	// Output receives the response, os.Stdout when nil.
	Output io.Writer
}

// retryInterval defines the delay between attempts while waiting for the server.
const retryInterval = 1 * time.Second

var (
	// errCallRequired is returned when no call is configured.
	errCallRequired = errors.New("call must be provided")
	// errRequestFailed is returned when the server reports a failed outcome.
	errRequestFailed = errors.New("request failed")
)

// Run performs the call, prints the response and fails when the outcome is an error.
//
//nolint:cyclop // Retry loop requires multiple conditional paths.
func Run(ctx context.Context, opts *Options) error {
	if opts.Call == nil {
		return errCallRequired
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "gasctl")

	// Load settings; environment variables alone are enough without a file.
	cfg, err := config.LoadOptional(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.Client.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the server audit log.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling gas-guard server", "server_address", serverAddress, "call", opts.Name)

	// attempt tries once, returns (response, retry, error).
	attempt := func() (*structpb.Struct, bool, error) {
		response, err := opts.Call(ctx, client)
		if err == nil {
			return response, false, nil
		}

		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}

		if opts.Wait && status.Code(err) == codes.Unavailable {
			logger.WarnKV(ctx, "Server unavailable, retrying", "error", err)

			return nil, true, nil
		}

		return nil, false, err
	}

	response, retry, err := attempt()
	if retry {
		ticker := time.NewTicker(retryInterval)
		defer ticker.Stop()

		for retry && err == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				response, retry, err = attempt()
			}
		}
	}

	if err != nil {
		return err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	return report(output, response)
}

// report prints the response and converts failed outcomes into an error.
func report(output io.Writer, response *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	if _, err := fmt.Fprintln(output, string(data)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	fields := response.GetFields()

	switch gas.Status(fields[gas.FieldStatus].GetStringValue()) {
	case gas.StatusSuccess, gas.StatusNoOp, "":
		return nil
	default:
		return fmt.Errorf("%w: %s", errRequestFailed, fields[gas.FieldMessage].GetStringValue())
	}
}
