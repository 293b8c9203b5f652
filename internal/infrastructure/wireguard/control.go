package wireguard

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

// DeviceController drives the live daemon's peer table through the wg
// control utility. Every invocation is bounded by a timeout; a timed-out or
// failed call is reported as ErrControlPlaneUnavailable.
type DeviceController struct {
	interfaceName string
	timeout       time.Duration
	logger        logger.Interface
}

// NewDeviceController creates a controller for the given interface.
func NewDeviceController(interfaceName string, timeout time.Duration, log logger.Interface) *DeviceController {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DeviceController{
		interfaceName: interfaceName,
		timeout:       timeout,
		logger:        log,
	}
}

// AddPeer registers a peer on the live interface.
func (c *DeviceController) AddPeer(ctx context.Context, publicKey, allowedAddress string) error {
	return c.run(ctx, "peer", publicKey, "allowed-ips", allowedAddress)
}

// RemovePeer removes a peer from the live interface. The wg utility treats
// removing an unknown peer as success, which keeps removal idempotent.
func (c *DeviceController) RemovePeer(ctx context.Context, publicKey string) error {
	return c.run(ctx, "peer", publicKey, "remove")
}

func (c *DeviceController) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmdArgs := append([]string{"set", c.interfaceName}, args...)
	cmd := exec.CommandContext(ctx, "wg", cmdArgs...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Errorw("wg control operation failed",
			"interface", c.interfaceName,
			"args", strings.Join(args, " "),
			"output", strings.TrimSpace(string(output)),
			"error", err)
		return fmt.Errorf("%w: wg set %s: %v", entitlement.ErrControlPlaneUnavailable, strings.Join(args, " "), err)
	}

	return nil
}
