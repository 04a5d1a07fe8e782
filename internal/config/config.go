package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrNoDevices = errors.New("config: inventory lists no devices")
)

// Inventory is the device list file read by `fingerctl serve`.
type Inventory struct {
	Devices []DeviceEntry `toml:"devices"`
}

type DeviceEntry struct {
	ID           string `toml:"id" json:"id"`
	Name         string `toml:"name" json:"name"`
	Kind         string `toml:"kind" json:"kind"`
	Host         string `toml:"host" json:"host"`
	Port         int    `toml:"port" json:"port"`
	Timeout      string `toml:"timeout" json:"timeout"`
	Mode         string `toml:"mode" json:"mode"`
	Names        bool   `toml:"names" json:"names"`
	ResponseSize int    `toml:"response_size" json:"response_size"`
}

func LoadInventory(path string) (Inventory, error) {
	var inv Inventory
	if err := loadToml(path, &inv); err != nil {
		return Inventory{}, err
	}
	if err := ValidateInventory(inv); err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateInventory(inv Inventory) error {
	if len(inv.Devices) == 0 {
		return ErrNoDevices
	}
	ids := make(map[string]int, len(inv.Devices))
	hosts := make(map[string]int, len(inv.Devices))
	for i, entry := range inv.Devices {
		if err := ValidateDevice(entry); err != nil {
			return fmt.Errorf("devices[%d] invalid: %w", i, err)
		}
		cfg, _ := entry.Device()
		host := strings.ToLower(cfg.Host)
		if j, ok := ids[cfg.ID]; ok {
			return fmt.Errorf("devices[%d] invalid: %w: id %q also used by devices[%d]", i, device.ErrDuplicateDevice, cfg.ID, j)
		}
		if j, ok := hosts[host]; ok {
			return fmt.Errorf("devices[%d] invalid: %w: host %q also used by devices[%d]", i, device.ErrDuplicateDevice, cfg.Host, j)
		}
		ids[cfg.ID] = i
		hosts[host] = i
	}
	return nil
}

func ValidateDevice(entry DeviceEntry) error {
	if strings.TrimSpace(entry.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if entry.Port < 0 || entry.Port > 65535 {
		return fmt.Errorf("port out of range: %d", entry.Port)
	}
	if entry.ResponseSize < 0 {
		return fmt.Errorf("response_size must not be negative")
	}
	_, err := entry.Device()
	return err
}
