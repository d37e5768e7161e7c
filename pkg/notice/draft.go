package notice

import (
	"os"
	"runtime"
)

const (
	DefaultNotifierName    = "relay-notify"
	DefaultNotifierVersion = "0.1.0"
	DefaultNotifierURL     = "https://github.com/puppetlabs/relay-notify"
)

// Notifier identifies the client library in every notice.
type Notifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Draft holds the static portion of every notice. It is built once and is
// never modified afterward; accessors hand out copies.
type Draft struct {
	environment   string
	notifier      Notifier
	hostname      string
	rootDirectory string
	context       map[string]interface{}
	env           map[string]interface{}
}

func (d *Draft) Environment() string {
	return d.environment
}

func (d *Draft) Notifier() Notifier {
	return d.notifier
}

func (d *Draft) Hostname() string {
	return d.hostname
}

// Context returns a copy of the static context metadata.
func (d *Draft) Context() map[string]interface{} {
	return copyMap(d.context)
}

type DraftOptions struct {
	Notifier      Notifier
	Hostname      string
	RootDirectory string
	Context       map[string]interface{}
	Env           map[string]interface{}
}

type DraftOption func(opts *DraftOptions)

func DraftWithNotifier(n Notifier) DraftOption {
	return func(opts *DraftOptions) {
		opts.Notifier = n
	}
}

func DraftWithHostname(hostname string) DraftOption {
	return func(opts *DraftOptions) {
		opts.Hostname = hostname
	}
}

func DraftWithRootDirectory(dir string) DraftOption {
	return func(opts *DraftOptions) {
		opts.RootDirectory = dir
	}
}

// DraftWithContext adds static key-value pairs to the context section of every
// notice. Later calls override earlier keys.
func DraftWithContext(ctx map[string]interface{}) DraftOption {
	return func(opts *DraftOptions) {
		if opts.Context == nil {
			opts.Context = make(map[string]interface{}, len(ctx))
		}

		for k, v := range ctx {
			opts.Context[k] = v
		}
	}
}

// DraftWithEnv sets the environment section (process environment details, not
// the deployment environment name).
func DraftWithEnv(env map[string]interface{}) DraftOption {
	return func(opts *DraftOptions) {
		opts.Env = copyMap(env)
	}
}

// NewDraft creates the static notice template for the given deployment
// environment.
func NewDraft(environment string, opts ...DraftOption) *Draft {
	hostname, _ := os.Hostname()

	o := &DraftOptions{
		Notifier: Notifier{
			Name:    DefaultNotifierName,
			Version: DefaultNotifierVersion,
			URL:     DefaultNotifierURL,
		},
		Hostname: hostname,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Draft{
		environment:   environment,
		notifier:      o.Notifier,
		hostname:      o.Hostname,
		rootDirectory: o.RootDirectory,
		context:       copyMap(o.Context),
		env:           copyMap(o.Env),
	}
}

func runtimeContext() (string, string) {
	return runtime.GOOS + "/" + runtime.GOARCH, runtime.Version()
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
