package notify

import (
	"strings"
	"sync"

	log "github.com/inconshreveable/log15"
)

// LogRecorder captures every record written through its logger.
type LogRecorder struct {
	Logger log.Logger

	mu      sync.Mutex
	records []*log.Record
}

func (lr *LogRecorder) Records() []*log.Record {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	out := make([]*log.Record, len(lr.records))
	copy(out, lr.records)
	return out
}

// Matching returns the records at lvl whose message contains substr.
func (lr *LogRecorder) Matching(lvl log.Lvl, substr string) []*log.Record {
	var out []*log.Record
	for _, r := range lr.Records() {
		if r.Lvl == lvl && strings.Contains(r.Msg, substr) {
			out = append(out, r)
		}
	}

	return out
}

func (lr *LogRecorder) AtLevel(lvl log.Lvl) []*log.Record {
	return lr.Matching(lvl, "")
}

func NewLogRecorder() *LogRecorder {
	lr := &LogRecorder{}

	lr.Logger = log.New()
	lr.Logger.SetHandler(log.FuncHandler(func(r *log.Record) error {
		lr.mu.Lock()
		defer lr.mu.Unlock()

		lr.records = append(lr.records, r)
		return nil
	}))

	return lr
}
