package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "service":
		return serviceTemplate, nil
	case "inventory", "devices":
		return inventoryTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serviceTemplate = `addr = ":9300"
cors_origins = ["http://localhost:3000"]
inventory = "devices.toml"
poll_interval = "5m"
log_level = "info"

[mqtt]
broker = ""
topic_prefix = "fingerctl"
qos = 1
retain = true
`

const inventoryTemplate = `[[devices]]
id = "front-door"
kind = "finger"
host = "192.168.1.67"
port = 5005
timeout = "5s"
mode = "all"
names = true
`
