package link

import (
	"sync/atomic"
)

// LinkMetrics contains atomic metrics for a link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type LinkMetrics struct {
	// LineSendCount indicates the number of command lines written.
	LineSendCount atomic.Uint64
	// LineRecvCount indicates the number of lines received.
	LineRecvCount atomic.Uint64
	// BannerDropCount indicates the number of lines dropped before readiness.
	BannerDropCount atomic.Uint64

	// ReplyCount indicates the number of replies matched to a pending request.
	ReplyCount atomic.Uint64
	// StatusCount indicates the number of unsolicited status lines.
	StatusCount atomic.Uint64
	// DeviceErrCount indicates the number of error lines received.
	DeviceErrCount atomic.Uint64
	// ProtocolErrCount indicates the number of protocol violations.
	ProtocolErrCount atomic.Uint64

	// InflightGauge indicates the number of requests waiting for a reply.
	InflightGauge atomic.Int64
}

func (m *LinkMetrics) incLineSendCount() {
	m.LineSendCount.Add(1)
}

func (m *LinkMetrics) incLineRecvCount() {
	m.LineRecvCount.Add(1)
}

func (m *LinkMetrics) incBannerDropCount() {
	m.BannerDropCount.Add(1)
}

func (m *LinkMetrics) incReplyCount() {
	m.ReplyCount.Add(1)
}

func (m *LinkMetrics) incStatusCount() {
	m.StatusCount.Add(1)
}

func (m *LinkMetrics) incDeviceErrCount() {
	m.DeviceErrCount.Add(1)
}

func (m *LinkMetrics) incProtocolErrCount() {
	m.ProtocolErrCount.Add(1)
}

func (m *LinkMetrics) incInflightGauge() {
	m.InflightGauge.Add(1)
}

func (m *LinkMetrics) decInflightGauge() {
	m.InflightGauge.Add(-1)
}
