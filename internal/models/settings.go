package models

import "time"

// DefaultSettingKey is the key of the single row each runtime setting table holds
const DefaultSettingKey = "default"

// RatelimitConfig is the API rate limit in ulule format, e.g. "20-S" or "1000-H"
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CorsConfig lists the browser origins allowed to call the API
type CorsConfig struct {
	ConfigKey        string    `json:"config_key"`
	AllowedOrigins   string    `json:"allowed_origins"` // comma-separated
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"` // seconds
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
