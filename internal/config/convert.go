package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/protocol/frame"
)

// Device converts an inventory entry to a defaulted device config.
func (e DeviceEntry) Device() (device.Config, error) {
	kind, err := device.ParseKind(e.Kind)
	if err != nil {
		return device.Config{}, err
	}
	mode, err := frame.ParseMode(e.Mode)
	if err != nil {
		return device.Config{}, err
	}
	var timeout time.Duration
	if raw := strings.TrimSpace(e.Timeout); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return device.Config{}, fmt.Errorf("parse timeout: %w", err)
		}
	}
	return device.Config{
		ID:           strings.TrimSpace(e.ID),
		Name:         strings.TrimSpace(e.Name),
		Kind:         kind,
		Host:         e.Host,
		Port:         e.Port,
		Timeout:      timeout,
		Mode:         mode,
		Names:        e.Names,
		ResponseSize: e.ResponseSize,
	}.WithDefaults(), nil
}

// DeviceConfigs converts every entry of inv.
func (inv Inventory) DeviceConfigs() ([]device.Config, error) {
	out := make([]device.Config, 0, len(inv.Devices))
	for i, entry := range inv.Devices {
		cfg, err := entry.Device()
		if err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}
