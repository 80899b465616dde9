package metrics

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mutenixd"

// Metrics is shared by the device link and the meeting client.
type Metrics struct {
	reportCount      metrics.Counter
	commandCount     metrics.Counter
	connectCount     metrics.Counter
	chunkCount       metrics.Counter
	updateDuration   metrics.Histogram
	messageCount     metrics.Counter
	sentMessageCount metrics.Counter
}

// New registers the collectors with the default Prometheus registry, so
// it must only be called once per process.
func New() *Metrics {
	return &Metrics{
		reportCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "hid",
				Name:      "report_count",
				Help:      "Number of HID reports read from the device.",
			}, []string{"kind"}),
		commandCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "hid",
				Name:      "command_count",
				Help:      "Number of commands written to the device.",
			}, []string{"command", "error"}),
		connectCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connect_count",
				Help:      "Number of successful (re)connects.",
			}, []string{"link"}),
		chunkCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "update",
				Name:      "chunk_count",
				Help:      "Number of update chunks written, retransmissions included.",
			}, []string{"retransmit"}),
		updateDuration: kitprometheus.NewSummaryFrom(
			stdprometheus.SummaryOpts{
				Namespace: namespace,
				Subsystem: "update",
				Name:      "duration",
				Help:      "How long a firmware update took (in seconds).",
			}, []string{"error"}),
		messageCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "meeting",
				Name:      "received_message_count",
				Help:      "Number of frames received from the meeting service.",
			}, []string{"decoded"}),
		sentMessageCount: kitprometheus.NewCounterFrom(
			stdprometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "meeting",
				Name:      "sent_message_count",
				Help:      "Number of messages sent to the meeting service.",
			}, []string{"error"}),
	}
}

// Nop returns metrics that record nothing.
func Nop() *Metrics {
	return &Metrics{
		reportCount:      discard.NewCounter(),
		commandCount:     discard.NewCounter(),
		connectCount:     discard.NewCounter(),
		chunkCount:       discard.NewCounter(),
		updateDuration:   discard.NewHistogram(),
		messageCount:     discard.NewCounter(),
		sentMessageCount: discard.NewCounter(),
	}
}

func (m *Metrics) ReportRead(kind string) {
	m.reportCount.With("kind", kind).Add(1)
}

func (m *Metrics) CommandWritten(command string, err error) {
	m.commandCount.With("command", command, "error", fmt.Sprint(err != nil)).Add(1)
}

func (m *Metrics) Connected(link string) {
	m.connectCount.With("link", link).Add(1)
}

func (m *Metrics) ChunkWritten(retransmit bool) {
	m.chunkCount.With("retransmit", fmt.Sprint(retransmit)).Add(1)
}

func (m *Metrics) UpdateFinished(begin time.Time, err error) {
	m.updateDuration.With("error", fmt.Sprint(err != nil)).Observe(time.Since(begin).Seconds())
}

func (m *Metrics) MessageReceived(decoded bool) {
	m.messageCount.With("decoded", fmt.Sprint(decoded)).Add(1)
}

func (m *Metrics) MessageSent(err error) {
	m.sentMessageCount.With("error", fmt.Sprint(err != nil)).Add(1)
}
