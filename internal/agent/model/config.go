package model

// ================ Config ================
type SessionConfig struct {
	TTL     string `envconfig:"SESSION_TTL" default:"30m"`
	Backend string `envconfig:"SESSION_BACKEND" default:"memory"`
}

type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
}

type UpstreamConfig struct {
	BaseURL string `envconfig:"UPSTREAM_BASE_URL" required:"true"`
	Timeout string `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
}
