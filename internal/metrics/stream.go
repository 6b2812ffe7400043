package metrics

var readerLabels = []string{"log", "group", "consumer"}

// ReaderMetrics are recorded by group and tail readers
type ReaderMetrics struct {
	Delivered       CounterVec
	Acked           CounterVec
	HandlerFailures CounterVec
	AckFailures     CounterVec
	NotPending      CounterVec
	PollSeconds     HistogramVec
	State           GaugeVec
}

// NewReaderMetrics registers the reader collectors on r
func NewReaderMetrics(r *Registry) *ReaderMetrics {
	return &ReaderMetrics{
		Delivered:       r.NewCounterVec("entries_delivered_total", "Entries handed to a handler.", readerLabels),
		Acked:           r.NewCounterVec("entries_acked_total", "Entries acknowledged after a successful handler.", readerLabels),
		HandlerFailures: r.NewCounterVec("handler_failures_total", "Handler errors; the entry stays pending.", readerLabels),
		AckFailures:     r.NewCounterVec("ack_failures_total", "Acknowledgments the broker did not accept.", readerLabels),
		NotPending:      r.NewCounterVec("ack_not_pending_total", "Acknowledgments of entries that were no longer pending.", readerLabels),
		PollSeconds: r.NewHistogramVec("poll_duration_seconds", "Time spent in a single broker read.", readerLabels,
			[]float64{.001, .005, .01, .05, .1, .5, 1, 2, 5}),
		State: r.NewGaugeVec("reader_state", "Current reader state (0 idle, 1 polling, 2 dispatching, 3 stopped).", readerLabels),
	}
}

// NoopReaderMetrics records nothing
func NoopReaderMetrics() *ReaderMetrics {
	return NewReaderMetrics(nil)
}

// ProducerMetrics are recorded by producers
type ProducerMetrics struct {
	Appended       CounterVec
	AppendFailures CounterVec
}

// NewProducerMetrics registers the producer collectors on r
func NewProducerMetrics(r *Registry) *ProducerMetrics {
	return &ProducerMetrics{
		Appended:       r.NewCounterVec("entries_appended_total", "Entries appended by producers.", []string{"log"}),
		AppendFailures: r.NewCounterVec("append_failures_total", "Appends the broker refused or could not take.", []string{"log"}),
	}
}

// NoopProducerMetrics records nothing
func NoopProducerMetrics() *ProducerMetrics {
	return NewProducerMetrics(nil)
}
