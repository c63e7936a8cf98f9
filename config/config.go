package config

import "time"

type Config struct {
	Web        Web
	DB         DB
	Auth       Auth
	Rate       Rate
	Capability Capability
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
	CorsOrigin      string
	MetricsPath     string `conf:"default:/metrics"`
}

// DB selects the store. Driver "memory" keeps everything in process and
// ignores the connection settings.
type DB struct {
	Driver       string `conf:"default:memory,help:memory or postgres"`
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:portal"`
	MaxIdleConns int    `conf:"default:5"`
	MaxOpenConns int    `conf:"default:20"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

// Auth configures how callers prove their identity. When OIDCIssuer is set
// bearer ID tokens are verified against it. Otherwise the identity is read
// from IdentityHeader, which must only be set behind a gateway that strips
// the header from client requests. One of the two is required.
type Auth struct {
	OIDCIssuer       string
	OIDCClientID     string
	DiscoveryTimeout time.Duration `conf:"default:10s"`
	IdentityHeader   string
}

type Rate struct {
	Enabled bool          `conf:"default:true"`
	Burst   int           `conf:"default:20"`
	Every   time.Duration `conf:"default:100ms"`
	Expiry  time.Duration `conf:"default:10m"`
}

type Capability struct {
	Cost int `conf:"default:10"`
}
