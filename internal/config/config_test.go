package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/protocol/frame"
	"github.com/danmuck/fingerctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadInventoryTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "devices.toml")
	if err := WriteTemplate(path, "inventory", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "inventory", false); err == nil {
		t.Fatalf("expected existing file to be kept")
	}

	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfgs, err := inv.DeviceConfigs()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(cfgs) != 1 {
		t.Fatalf("unexpected devices=%d", len(cfgs))
	}
	got := cfgs[0]
	if got.ID != "front-door" || got.Host != "192.168.1.67" || got.Port != 5005 {
		t.Fatalf("unexpected device=%+v", got)
	}
	if got.Kind != device.KindFinger || got.Mode != frame.ModeAll || !got.Names || got.Timeout != 5*time.Second {
		t.Fatalf("unexpected device=%+v", got)
	}
}

func TestLoadInventoryDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
[[devices]]
host = "10.0.0.5"
mode = "new"
`)
	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := inv.Devices[0].Device()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.ID != "10.0.0.5" || cfg.Port != 5005 || cfg.Mode != frame.ModeNew || cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected defaults=%+v", cfg)
	}
}

func TestLoadInventoryRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"empty":        ``,
		"missing host": "[[devices]]\nid = \"a\"\n",
		"bad mode":     "[[devices]]\nhost = \"h\"\nmode = \"latest\"\n",
		"bad kind":     "[[devices]]\nhost = \"h\"\nkind = \"serial\"\n",
		"bad timeout":  "[[devices]]\nhost = \"h\"\ntimeout = \"abc\"\n",
		"bad port":     "[[devices]]\nhost = \"h\"\nport = 70000\n",
		"dup host":     "[[devices]]\nid = \"a\"\nhost = \"h\"\n[[devices]]\nid = \"b\"\nhost = \"H\"\n",
		"dup id":       "[[devices]]\nid = \"a\"\nhost = \"h1\"\n[[devices]]\nid = \"a\"\nhost = \"h2\"\n",
		"syntax":       "[[devices]\n",
	}
	for name, content := range cases {
		if _, err := LoadInventory(writeFile(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	_, err := LoadInventory(writeFile(t, "[[devices]]\nid = \"a\"\nhost = \"h\"\n[[devices]]\nid = \"b\"\nhost = \"h\"\n"))
	if !errors.Is(err, device.ErrDuplicateDevice) {
		t.Fatalf("expected ErrDuplicateDevice, got %v", err)
	}
	if _, err := LoadInventory(writeFile(t, "")); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("expected ErrNoDevices, got %v", err)
	}
}

func TestLoadInventoryKeepsCloudEntries(t *testing.T) {
	testlog.Start(t)
	inv, err := LoadInventory(writeFile(t, "[[devices]]\nhost = \"cloud.example\"\nkind = \"cloud\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, _ := inv.Devices[0].Device()
	if cfg.Kind != device.KindCloud {
		t.Fatalf("unexpected kind=%s", cfg.Kind)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := Template("service"); err != nil {
		t.Fatalf("service template: %v", err)
	}
}
