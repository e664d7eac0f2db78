// Package telemetry exposes Prometheus instrumentation for the
// communication core. Metrics are off until Enable is called; every
// package-level helper is a no-op before that, so library users who
// never enable metrics pay nothing.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "qds"

// Metrics holds every instrument the core reports into.
type Metrics struct {
	datagramsSent     *prometheus.CounterVec
	datagramsReceived *prometheus.CounterVec
	clientPackets     prometheus.Counter
	robotPackets      prometheus.Counter
	robotVoltage      prometheus.Gauge
	scanWindowOffset  prometheus.Gauge
	poolSize          prometheus.Gauge
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Enable registers the core's metrics with the given registerer and
// turns the package-level helpers on. The first call wins; later
// calls return the same Metrics.
func Enable(registry prometheus.Registerer) *Metrics {
	globalOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		factory := promauto.With(registry)
		global = &Metrics{
			datagramsSent: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_sent_total",
				Help:      "Datagrams transmitted, by channel",
			}, []string{"channel"}),
			datagramsReceived: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_received_total",
				Help:      "Datagrams received, by channel",
			}, []string{"channel"}),
			clientPackets: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_packets_total",
				Help:      "Outbound client control packets generated",
			}),
			robotPackets: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "robot_packets_total",
				Help:      "Inbound robot packets decoded",
			}),
			robotVoltage: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "robot_voltage_volts",
				Help:      "Last reported battery voltage",
			}),
			scanWindowOffset: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_window_offset",
				Help:      "Current offset of the LAN scan window",
			}),
			poolSize: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_size",
				Help:      "Parallel socket pair count",
			}),
		}
	})
	return global
}

// DatagramSent counts one transmitted datagram on a channel.
func DatagramSent(channel string) {
	if global != nil {
		global.datagramsSent.WithLabelValues(channel).Inc()
	}
}

// DatagramReceived counts one received datagram on a channel.
func DatagramReceived(channel string) {
	if global != nil {
		global.datagramsReceived.WithLabelValues(channel).Inc()
	}
}

// ClientPacket counts one generated client control packet.
func ClientPacket() {
	if global != nil {
		global.clientPackets.Inc()
	}
}

// RobotPacket counts one decoded robot packet.
func RobotPacket() {
	if global != nil {
		global.robotPackets.Inc()
	}
}

// Voltage records the last decoded battery voltage.
func Voltage(v float64) {
	if global != nil {
		global.robotVoltage.Set(v)
	}
}

// ScanWindow records the LAN scan cursor position.
func ScanWindow(offset int) {
	if global != nil {
		global.scanWindowOffset.Set(float64(offset))
	}
}

// PoolSize records the parallel pool size.
func PoolSize(n int) {
	if global != nil {
		global.poolSize.Set(float64(n))
	}
}
