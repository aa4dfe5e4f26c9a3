package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"addr":       ":8080",
			"tls_addr":   ":443",
			"tls_cert":   "",
			"tls_key":    "",
			"static_dir": "./static",
		},
		"storage": map[string]interface{}{
			"type":        "file",
			"users_file":  "users.json",
			"plans_file":  "plans.json",
			"sqlite_path": "planner.db",
			"mongo_uri":   "mongodb://localhost:27017",
			"mongo_db":    "daily_planner",
		},
		"markers": map[string]interface{}{
			"type":           "memory",
			"file":           "markers.json",
			"redis_addr":     "localhost:6379",
			"redis_password": "",
			"redis_db":       0,
			"ttl":            "72h",
		},
		"scheduler": map[string]interface{}{
			"interval":           "10s",
			"window_past_days":   7,
			"window_future_days": 30,
			"catch_up_missed":    false,
			"fetch_timeout":      "5s",
			"fetch_concurrency":  0,
			"alert_delay":        "100ms",
			"write_back":         "patch",
			"timezone":           "Local",
		},
		"push": map[string]interface{}{
			"vapid_public_key":  "",
			"vapid_private_key": "",
			"subscriber":        "reminders@daily-planner.local",
			"ttl":               60,
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "json",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
