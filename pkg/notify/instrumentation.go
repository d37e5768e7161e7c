package notify

import (
	"github.com/puppetlabs/leg/instrumentation/metrics"
	"github.com/puppetlabs/leg/instrumentation/metrics/collectors"
)

const (
	metricNoticesTotal           = "notices_total"
	metricNoticeExchangeDuration = "notice_exchange_duration"
)

type observations struct {
	mets *metrics.Metrics
}

func (o *observations) countOutcome(kind OutcomeKind) {
	if o == nil {
		return
	}

	o.mets.MustCounter(metricNoticesTotal, collectors.Label{Name: "outcome", Value: string(kind)}).Inc()
}

// exchangeTimer pairs a handle with the timer that issued it. Handles are only
// known to the timer they were started on.
type exchangeTimer struct {
	timer  collectors.Timer
	handle *collectors.TimerHandle
}

func (o *observations) startExchange() *exchangeTimer {
	if o == nil {
		return nil
	}

	timer := o.mets.MustTimer(metricNoticeExchangeDuration)
	return &exchangeTimer{
		timer:  timer,
		handle: timer.Start(),
	}
}

func (o *observations) finishExchange(et *exchangeTimer, kind OutcomeKind) {
	if o == nil || et == nil {
		return
	}

	et.timer.ObserveDuration(et.handle, collectors.Label{Name: "outcome", Value: string(kind)})
}

func newObservations(mets *metrics.Metrics) *observations {
	if mets == nil {
		return nil
	}

	mets.MustRegisterCounter(metricNoticesTotal, collectors.CounterOptions{
		Description: "number of notices by final outcome",
		Labels:      []string{"outcome"},
	})

	mets.MustRegisterTimer(metricNoticeExchangeDuration, collectors.TimerOptions{
		Description: "time from dispatch of a notice to classification of its response",
		Labels:      []string{"outcome"},
	})

	return &observations{
		mets: mets,
	}
}
