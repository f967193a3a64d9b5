package coach_api_config

import (
	"time"

	"github.com/NordCoder/posecoach/internal/obs"
	pg "github.com/NordCoder/posecoach/internal/repository/postgres"
	rdb "github.com/NordCoder/posecoach/internal/repository/redis"
)

type App struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Version  string `mapstructure:"version"`
	Timezone string `mapstructure:"timezone"`
}

func (a App) Production() bool { return a.Env == "production" }

// Location resolves Timezone. Empty and "Local" both mean the host zone.
func (a App) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:   lc.Level,
		Pretty:  lc.Pretty,
		Service: "posecoach/" + app.Name,
		Env:     app.Env,
		Version: app.Version,
	}
}

type Auth struct {
	AccessSecret       string        `mapstructure:"access_secret"`
	RefreshSecret      string        `mapstructure:"refresh_secret"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	Issuer             string        `mapstructure:"issuer"`
	AccessCookieMaxAge time.Duration `mapstructure:"access_cookie_max_age"`
	CookieDomain       string        `mapstructure:"cookie_domain"`
	CookiePath         string        `mapstructure:"cookie_path"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
}

type Pose struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	VerifyTLS bool          `mapstructure:"verify_tls"`
}

type RateLimit struct {
	AuthLimit  int           `mapstructure:"auth_limit"`
	AuthWindow time.Duration `mapstructure:"auth_window"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Web struct {
	TemplatesGlob string `mapstructure:"templates_glob"`
	StaticDir     string `mapstructure:"static_dir"`
}

type Config struct {
	App       App        `mapstructure:"app"`
	Server    Server     `mapstructure:"server"`
	DB        pg.Config  `mapstructure:"db"`
	OTEL      OTEL       `mapstructure:"otel"`
	Log       Log        `mapstructure:"log"`
	Auth      Auth       `mapstructure:"auth"`
	Pose      Pose       `mapstructure:"pose"`
	Redis     rdb.Config `mapstructure:"redis"`
	RateLimit RateLimit  `mapstructure:"ratelimit"`
	Kafka     Kafka      `mapstructure:"kafka"`
	Web       Web        `mapstructure:"web"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
