package opt

import (
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/leg/instrumentation/metrics"
	"github.com/puppetlabs/leg/instrumentation/metrics/delegates"
	"github.com/puppetlabs/relay-notify/pkg/admission"
	"github.com/puppetlabs/relay-notify/pkg/connpool"
	"github.com/puppetlabs/relay-notify/pkg/errmark"
	"github.com/puppetlabs/relay-notify/pkg/notice"
	"github.com/puppetlabs/relay-notify/pkg/notify"
	"github.com/spf13/viper"
)

const (
	DefaultEnvironment           = "dev"
	DefaultListenPort            = 7080
	DefaultMetricsServerBindAddr = "localhost:3050"
	DefaultMetricsNamespace      = "relay_notify"
	DefaultShutdownTimeout       = 30 * time.Second
)

type Config struct {
	// Debug determines whether debug-level records are written.
	Debug bool

	// Environment is the name of the deployment environment attached to every
	// notice.
	Environment string

	// Enabled is the raw reporting mode: true, false, or log.
	Enabled string

	// ProjectID and ProjectKey identify the project notices are filed under.
	ProjectID  string
	ProjectKey string

	// URL is the base URL of the notices API.
	URL string

	// OverloadThreshold is the maximum number of notices in flight at once.
	OverloadThreshold int

	// PoolSize is the maximum number of simultaneous connections to the API.
	PoolSize int

	// Hostname and RootDirectory are reported in the context of every notice.
	// Hostname defaults to the machine's host name.
	Hostname      string
	RootDirectory string

	// ListenPort is the port the ingest server binds to.
	ListenPort int

	// TLSKeyFile and TLSCertificateFile are paths to a PEM-encoded private
	// key and certificate bundle. When both are set the ingest server only
	// accepts TLS connections.
	TLSKeyFile         string
	TLSCertificateFile string

	// MetricsEnabled starts the metrics server on MetricsServerBindAddr.
	MetricsEnabled        bool
	MetricsServerBindAddr string

	// ShutdownTimeout bounds how long in-flight notices may take to finish
	// when the process stops.
	ShutdownTimeout time.Duration

	// ConfigFile is an optional YAML file providing any of the settings
	// above. Environment variables take precedence over it.
	ConfigFile string
}

// Mode parses the configured reporting mode.
func (c *Config) Mode() (notify.Mode, error) {
	return notify.ParseMode(c.Enabled)
}

// Validate checks that the configuration is usable. All returned errors are
// marked as user errors.
func (c *Config) Validate() error {
	mode, err := c.Mode()
	if err != nil {
		return errmark.MarkUser(err)
	}

	if (c.TLSKeyFile == "") != (c.TLSCertificateFile == "") {
		return errmark.MarkUser(fmt.Errorf("opt: tls_key_file and tls_certificate_file must be set together"))
	}

	switch {
	case c.OverloadThreshold <= 0:
		return errmark.MarkUser(fmt.Errorf("opt: overload_threshold must be positive, got %d", c.OverloadThreshold))
	case c.PoolSize <= 0:
		return errmark.MarkUser(fmt.Errorf("opt: pool_size must be positive, got %d", c.PoolSize))
	}

	if mode == notify.ModeDisabled {
		return nil
	}

	if c.Environment == "" {
		return errmark.MarkUser(fmt.Errorf("opt: environment is required when reporting is %s", mode))
	}

	if mode == notify.ModeEnabled {
		if c.ProjectID == "" {
			return errmark.MarkUser(fmt.Errorf("opt: project_id is required when reporting is enabled"))
		} else if c.ProjectKey == "" {
			return errmark.MarkUser(fmt.Errorf("opt: project_key is required when reporting is enabled"))
		}

		if _, err := c.Endpoint().NoticesURL(); err != nil {
			return errmark.MarkUser(err)
		}
	}

	return nil
}

func (c *Config) Endpoint() notify.Endpoint {
	return notify.Endpoint{
		BaseURL:    c.URL,
		ProjectID:  c.ProjectID,
		ProjectKey: c.ProjectKey,
	}
}

// Draft builds the notice template shared by every report.
func (c *Config) Draft() *notice.Draft {
	var opts []notice.DraftOption
	if c.Hostname != "" {
		opts = append(opts, notice.DraftWithHostname(c.Hostname))
	}
	if c.RootDirectory != "" {
		opts = append(opts, notice.DraftWithRootDirectory(c.RootDirectory))
	}

	return notice.NewDraft(c.Environment, opts...)
}

// Metrics returns the metrics collector to attach to the dispatcher, or nil if
// metrics are disabled.
func (c *Config) Metrics() (*metrics.Metrics, error) {
	if !c.MetricsEnabled {
		return nil, nil
	}

	return metrics.NewNamespace(DefaultMetricsNamespace, metrics.Options{
		DelegateType:  delegates.PrometheusDelegate,
		ErrorBehavior: metrics.ErrorBehaviorLog,
	})
}

// Dispatcher validates the configuration and creates a dispatcher from it.
// Additional options are applied after the configured ones.
func (c *Config) Dispatcher(logger log.Logger, mets *metrics.Metrics, opts ...notify.Option) (*notify.Dispatcher, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	mode, _ := c.Mode()

	all := []notify.Option{
		notify.WithMode(mode),
		notify.WithOverloadThreshold(c.OverloadThreshold),
		notify.WithPoolSize(c.PoolSize),
	}
	if logger != nil {
		all = append(all, notify.WithLogger(logger))
	}
	if mets != nil {
		all = append(all, notify.WithMetrics(mets))
	}

	return notify.New(c.Draft(), c.Endpoint(), append(all, opts...)...)
}

// NewConfig reads the configuration from RELAY_NOTIFY_* environment variables
// and, if RELAY_NOTIFY_CONFIG_FILE is set, from the named file.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("relay_notify")
	v.AutomaticEnv()

	v.SetDefault("environment", DefaultEnvironment)
	v.SetDefault("enabled", "true")
	v.SetDefault("url", notify.DefaultBaseURL)
	v.SetDefault("overload_threshold", admission.DefaultLimit)
	v.SetDefault("pool_size", connpool.DefaultSize)
	v.SetDefault("listen_port", DefaultListenPort)
	v.SetDefault("metrics_server_bind_addr", DefaultMetricsServerBindAddr)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	if f := v.GetString("config_file"); f != "" {
		v.SetConfigFile(f)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, errmark.MarkUser(fmt.Errorf("opt: cannot read configuration file %q: %+v", f, err))
		}
	}

	return &Config{
		Debug:       v.GetBool("debug"),
		Environment: v.GetString("environment"),
		Enabled:     v.GetString("enabled"),

		ProjectID:  v.GetString("project_id"),
		ProjectKey: v.GetString("project_key"),
		URL:        v.GetString("url"),

		OverloadThreshold: v.GetInt("overload_threshold"),
		PoolSize:          v.GetInt("pool_size"),

		Hostname:      v.GetString("hostname"),
		RootDirectory: v.GetString("root_directory"),

		ListenPort: v.GetInt("listen_port"),

		TLSKeyFile:         v.GetString("tls_key_file"),
		TLSCertificateFile: v.GetString("tls_certificate_file"),

		MetricsEnabled:        v.GetBool("metrics_enabled"),
		MetricsServerBindAddr: v.GetString("metrics_server_bind_addr"),

		ShutdownTimeout: v.GetDuration("shutdown_timeout"),

		ConfigFile: v.GetString("config_file"),
	}, nil
}
