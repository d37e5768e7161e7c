package notice

import (
	"encoding/json"
	"fmt"
)

type payloadContext map[string]interface{}

type payload struct {
	Errors      []*Error               `json:"errors"`
	Context     payloadContext         `json:"context"`
	Environment map[string]interface{} `json:"environment"`
	Params      map[string]interface{} `json:"params"`
	Session     map[string]interface{} `json:"session"`
}

// Compose renders the JSON document for the given event. It has no side
// effects and does not modify the draft or the event.
func Compose(d *Draft, ev Event) ([]byte, error) {
	level := ev.Level
	if level == "" {
		level = DefaultLevel
	}

	ctx := payloadContext(d.Context())

	osName, language := runtimeContext()
	ctx["notifier"] = d.notifier
	ctx["environment"] = d.environment
	ctx["severity"] = level
	ctx["os"] = osName
	ctx["language"] = language
	if d.hostname != "" {
		ctx["hostname"] = d.hostname
	}
	if d.rootDirectory != "" {
		ctx["rootDirectory"] = d.rootDirectory
	}

	p := payload{
		Errors:      []*Error{ErrorFromBody(ev.Body, ev.Backtrace)},
		Context:     ctx,
		Environment: copyMap(d.env),
		Params:      copyMap(ev.Params),
		Session:     copyMap(ev.Session),
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("notice: failed to encode payload: %+v", err)
	}

	return b, nil
}
