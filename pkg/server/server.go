package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/inconshreveable/log15"
	utilapi "github.com/puppetlabs/leg/httputil/api"
	"github.com/puppetlabs/relay-notify/pkg/notice"
	"github.com/puppetlabs/relay-notify/pkg/notify"
	"github.com/puppetlabs/relay-notify/pkg/util/capturer"
)

const (
	// MaxRequestBodySize bounds the size of a submitted notice.
	MaxRequestBodySize = 1 << 20
)

// Emitter is the part of a notify.Dispatcher the server reports through.
type Emitter interface {
	EmitEvent(ev notice.Event) bool
	Stats() notify.Stats
}

type PostNoticeRequestEnvelope struct {
	Level   string                 `json:"level"`
	Error   notice.Error           `json:"error"`
	Params  map[string]interface{} `json:"params"`
	Session map[string]interface{} `json:"session"`
}

type PostNoticeResponseEnvelope struct {
	Accepted bool `json:"accepted"`
}

type ErrorResponseEnvelope struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

type GetHealthzResponseEnvelope struct {
	Ping  string       `json:"ping"`
	Stats notify.Stats `json:"stats"`
}

type Server struct {
	emitter   Emitter
	validator *schemaValidator
	logger    log.Logger
}

func (s *Server) Route(r *mux.Router) {
	r.Use(capturer.CapturePanicHandler(s.emitter))

	r.HandleFunc("/healthz", s.GetHealthz).Methods(http.MethodGet)
	r.HandleFunc("/notices", s.PostNotice).Methods(http.MethodPost)
}

func (s *Server) GetHealthz(w http.ResponseWriter, r *http.Request) {
	utilapi.WriteObjectOK(r.Context(), w, &GetHealthzResponseEnvelope{
		Ping:  "pong",
		Stats: s.emitter.Stats(),
	})
}

func (s *Server) PostNotice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := ioutil.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("server: failed to read request: %+v", err))
		return
	} else if len(b) > MaxRequestBodySize {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("server: request exceeds %d bytes", MaxRequestBodySize))
		return
	}

	if err := s.validator.Validate(b); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, r, http.StatusUnprocessableEntity, verr)
		} else {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("server: malformed request: %+v", err))
		}
		return
	}

	var env PostNoticeRequestEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("server: malformed request: %+v", err))
		return
	}

	if env.Error.Type == "" {
		env.Error.Type = "error"
	}

	accepted := s.emitter.EmitEvent(notice.Event{
		Level:     env.Level,
		Body:      &env.Error,
		Params:    env.Params,
		Session:   env.Session,
		Backtrace: env.Error.Backtrace,
	})

	utilapi.WriteObjectWithStatus(ctx, w, http.StatusAccepted, &PostNoticeResponseEnvelope{Accepted: accepted})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Debug("rejected notice request", "status", status, "error", err)

	env := &ErrorResponseEnvelope{Error: err.Error()}

	var verr *ValidationError
	if errors.As(err, &verr) {
		env.Error = "request does not match the notice schema"
		env.Problems = verr.Problems
	}

	utilapi.WriteObjectWithStatus(r.Context(), w, status, env)
}

type Options struct {
	Logger log.Logger
}

type Option func(opts *Options)

func WithLogger(logger log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func NewServer(emitter Emitter, opts ...Option) *Server {
	o := &Options{
		Logger: log.New("module", "server"),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Server{
		emitter:   emitter,
		validator: newSchemaValidator(),
		logger:    o.Logger,
	}
}

func NewHandler(emitter Emitter, opts ...Option) http.Handler {
	r := mux.NewRouter()
	NewServer(emitter, opts...).Route(r)
	return r
}
