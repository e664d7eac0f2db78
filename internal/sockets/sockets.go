// Package sockets owns every datagram endpoint of the driver station.
//
// The robot's address is unknown until it answers, so outbound robot
// packets fan out through a pool of parallel sender/receiver pairs
// that walk a rotating window over a candidate address list. The
// first inbound robot datagram locks the pool onto its source address
// and the fan-out stops. FMS and radio traffic go through single
// sender/receiver channels.
package sockets

import (
	"log/slog"
	"sync"

	"github.com/K9-guardian/QDriverStation/internal/ds"
	"github.com/K9-guardian/QDriverStation/internal/telemetry"
)

type channelKind int

const (
	chanFMS channelKind = iota
	chanRadio
	chanRobot
)

func (k channelKind) String() string {
	switch k {
	case chanFMS:
		return "fms"
	case chanRadio:
		return "radio"
	}
	return "robot"
}

// datagram is what receivers post onto the dispatch channel.
type datagram struct {
	channel channelKind
	source  string
	data    []byte
}

// Manager multiplexes the three communication channels and runs the
// parallel-socket LAN scan. All mutation goes through its lock; packet
// callbacks are invoked from a single dispatch goroutine.
type Manager struct {
	logger *slog.Logger

	// OnFMSPacket, OnRadioPacket and OnRobotPacket are invoked from
	// the dispatch goroutine with the raw bytes of each received
	// datagram. Set them before traffic starts.
	OnFMSPacket   func(data []byte)
	OnRadioPacket func(data []byte)
	OnRobotPacket func(data []byte)

	mu sync.Mutex

	iterator    int
	customCount int
	robotIP     string
	radioIP     string
	external    []string
	addresses   []string

	fmsInput    int
	fmsOutput   int
	radioInput  int
	radioOutput int
	robotInput  int
	robotOutput int

	fmsType   ds.SocketType
	radioType ds.SocketType
	robotType ds.SocketType

	fmsSender      *conn
	fmsReceiver    *conn
	radioSender    *conn
	radioReceiver  *conn
	robotSender    *conn
	robotSenders   []*conn
	robotReceivers []*conn

	// localAddrs feeds the LAN sweep; replaced in tests.
	localAddrs func() []string

	events chan datagram
	done   chan struct{}
	closed bool
}

// New creates a Manager with all ports disabled, UDP channels, and an
// empty address list. The dispatch goroutine starts immediately.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:      logger,
		fmsInput:    ds.DisabledPort,
		fmsOutput:   ds.DisabledPort,
		radioInput:  ds.DisabledPort,
		radioOutput: ds.DisabledPort,
		robotInput:  ds.DisabledPort,
		robotOutput: ds.DisabledPort,
		fmsType:     ds.SocketUDP,
		radioType:   ds.SocketUDP,
		robotType:   ds.SocketUDP,
		localAddrs:  localIPv4s,
		events:      make(chan datagram, 128),
		done:        make(chan struct{}),
	}
	m.fmsSender = newConn(ds.SocketUDP, logger)
	m.fmsReceiver = newConn(ds.SocketUDP, logger)
	m.fmsReceiver.onData = m.poster(chanFMS)
	m.radioSender = newConn(ds.SocketUDP, logger)
	m.radioReceiver = newConn(ds.SocketUDP, logger)
	m.radioReceiver.onData = m.poster(chanRadio)
	m.robotSender = newConn(ds.SocketUDP, logger)
	go m.dispatch()
	logger.Debug("socket manager initialized")
	return m
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// SocketCount returns the size of the parallel pool. Without a custom
// override the count scales with the address list, clamped so a huge
// candidate set cannot exhaust memory.
func (m *Manager) SocketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.socketCountLocked()
}

func (m *Manager) socketCountLocked() int {
	count := m.customCount
	if count <= 0 {
		count = min(72, max(len(m.addresses)/6, 1))
	}
	return min(count, 128)
}

// CustomSocketCount returns the user-supplied pool size override,
// zero when auto-sizing is in effect.
func (m *Manager) CustomSocketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customCount
}

// AddressList returns a copy of the current candidate address list.
func (m *Manager) AddressList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.addresses))
	copy(out, m.addresses)
	return out
}

// RobotAddress returns the locked robot address, empty while scanning.
func (m *Manager) RobotAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.robotIP
}

// RadioAddress returns the radio address, empty when unset.
func (m *Manager) RadioAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioIP
}

// FMSInputPort returns the port data is received from the FMS on.
func (m *Manager) FMSInputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fmsInput
}

// FMSOutputPort returns the port data is sent to the FMS on.
func (m *Manager) FMSOutputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fmsOutput
}

// RadioInputPort returns the port data is received from the radio on.
func (m *Manager) RadioInputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioInput
}

// RadioOutputPort returns the port data is sent to the radio on.
func (m *Manager) RadioOutputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioOutput
}

// RobotInputPort returns the port the parallel pool listens on.
func (m *Manager) RobotInputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.robotInput
}

// RobotOutputPort returns the port data is sent to the robot on.
func (m *Manager) RobotOutputPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.robotOutput
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// SendToFMS transmits data on the FMS channel. A missing sender or a
// disabled port makes this a silent no-op.
func (m *Manager) SendToFMS(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fmsSender == nil || m.fmsOutput == ds.DisabledPort {
		return
	}
	if err := m.fmsSender.writeTo(data, "0.0.0.0", m.fmsOutput); err != nil {
		m.logger.Debug("fms send failed", "err", err)
		return
	}
	telemetry.DatagramSent("fms")
}

// SendToRadio transmits data to the radio address.
func (m *Manager) SendToRadio(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.radioSender == nil || m.radioOutput == ds.DisabledPort {
		return
	}
	if err := m.radioSender.writeTo(data, m.radioIP, m.radioOutput); err != nil {
		m.logger.Debug("radio send failed", "addr", m.radioIP, "err", err)
		return
	}
	telemetry.DatagramSent("radio")
}

// SendToRobot transmits data to the robot. While the robot address is
// unknown the data fans out through the parallel pool to the current
// window of candidate addresses; callers then rotate the window with
// RefreshAddressList. Once the address is locked, a single send goes
// to it directly.
func (m *Manager) SendToRobot(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.robotOutput == ds.DisabledPort {
		return
	}

	if m.robotSender != nil && m.robotIP != "" {
		if err := m.robotSender.writeTo(data, m.robotIP, m.robotOutput); err != nil {
			m.logger.Debug("robot send failed", "addr", m.robotIP, "err", err)
			return
		}
		telemetry.DatagramSent("robot")
		return
	}

	count := m.socketCountLocked()
	for i := 0; i < count && i < len(m.robotSenders); i++ {
		if m.iterator+i >= len(m.addresses) {
			continue
		}
		ip := m.addresses[m.iterator+i]
		if err := m.robotSenders[i].writeTo(data, ip, m.robotOutput); err != nil {
			m.logger.Debug("fan-out send failed", "slot", i, "addr", ip, "err", err)
			continue
		}
		telemetry.DatagramSent("robot")
	}
}

// --------------------------------------------------------------------------
// Scan rotation
// --------------------------------------------------------------------------

// RefreshAddressList advances the probe window by one pool width and
// rebinds each pool receiver to its new candidate address. Call it
// after every fanned-out robot packet; the scan speed is the packet
// cadence times the pool size. A no-op once the robot address is
// locked or while the list is empty.
func (m *Manager) RefreshAddressList() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.robotIP != "" || len(m.addresses) == 0 {
		return
	}

	count := m.socketCountLocked()
	if len(m.addresses) > m.iterator+count {
		m.iterator += count
	} else {
		m.iterator = 0
	}
	telemetry.ScanWindow(m.iterator)

	for i := range m.robotReceivers {
		if m.iterator+i >= len(m.addresses) || m.robotInput == ds.DisabledPort {
			continue
		}
		addr := m.addresses[m.iterator+i]
		receiver := m.robotReceivers[i]
		receiver.unbind()
		if err := receiver.bind(addr, m.robotInput); err != nil {
			m.logger.Debug("pool bind failed", "slot", i, "addr", addr, "port", m.robotInput, "err", err)
		}
	}
}

// --------------------------------------------------------------------------
// Peer addresses
// --------------------------------------------------------------------------

// SetRobotAddress locks the robot address and halts the fan-out. Set
// automatically when the first robot datagram arrives; an empty string
// resumes scanning.
func (m *Manager) SetRobotAddress(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRobotAddressLocked(ip)
}

func (m *Manager) setRobotAddressLocked(ip string) {
	if m.robotIP == ip {
		return
	}
	m.robotIP = ip
	if m.robotSender != nil && ip != "" {
		m.robotSender.connectTo(ip, m.robotOutput)
	}
	m.logger.Info("robot address set", "addr", ip)
}

// SetRadioAddress updates the radio address, rebinding the radio
// receiver and reconnecting the radio sender.
func (m *Manager) SetRadioAddress(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.radioIP = ip
	if m.radioReceiver != nil && m.radioInput != ds.DisabledPort {
		if err := m.radioReceiver.bind(ip, m.radioInput); err != nil {
			m.logger.Debug("radio bind failed", "addr", ip, "err", err)
		}
	}
	if m.radioSender != nil {
		m.radioSender.connectTo(ip, m.radioOutput)
	}
	m.logger.Info("radio address set", "addr", ip)
}

// SetAddressList replaces the externally supplied candidate addresses,
// regenerates the local-network sweep behind them and rebuilds the
// parallel pool.
func (m *Manager) SetAddressList(list []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.external = make([]string, len(list))
	copy(m.external, list)
	m.regenerateAddressesLocked()
}

func (m *Manager) regenerateAddressesLocked() {
	m.addresses = append([]string{}, m.external...)
	locals := m.localAddrs()
	for _, ip := range locals {
		m.logger.Debug("client address detected", "addr", ip)
	}
	m.addresses = append(m.addresses, sweepAddresses(locals)...)
	m.generateSocketPairsLocked()
	m.logger.Info("address list regenerated", "candidates", len(m.addresses))
}

// --------------------------------------------------------------------------
// Port setters
// --------------------------------------------------------------------------

// SetFMSInputPort changes the port data is received from the FMS on
// and rebinds the FMS receiver.
func (m *Manager) SetFMSInputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fmsInput == port {
		return
	}
	m.fmsInput = port
	if m.fmsReceiver != nil && port != ds.DisabledPort {
		if err := m.fmsReceiver.bind("0.0.0.0", port); err != nil {
			m.logger.Debug("fms bind failed", "port", port, "err", err)
		}
	}
	m.logger.Debug("fms input port set", "port", port)
}

// SetFMSOutputPort changes the port data is sent to the FMS on.
func (m *Manager) SetFMSOutputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fmsOutput == port {
		return
	}
	m.fmsOutput = port
	if m.fmsSender != nil && port != ds.DisabledPort {
		m.fmsSender.connectTo("0.0.0.0", port)
	}
	m.logger.Debug("fms output port set", "port", port)
}

// SetRadioInputPort changes the port data is received from the radio
// on and rebinds the radio receiver.
func (m *Manager) SetRadioInputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.radioInput == port {
		return
	}
	m.radioInput = port
	if m.radioReceiver != nil && port != ds.DisabledPort {
		if err := m.radioReceiver.bind(m.radioIP, port); err != nil {
			m.logger.Debug("radio bind failed", "port", port, "err", err)
		}
	}
	m.logger.Debug("radio input port set", "port", port)
}

// SetRadioOutputPort changes the port data is sent to the radio on.
func (m *Manager) SetRadioOutputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.radioOutput == port {
		return
	}
	m.radioOutput = port
	if m.radioSender != nil && port != ds.DisabledPort {
		m.radioSender.connectTo(m.radioIP, port)
	}
	m.logger.Debug("radio output port set", "port", port)
}

// SetRobotInputPort changes the port the parallel pool listens on.
// The pool is deliberately NOT rebound here; receivers pick the port
// up on the next RefreshAddressList rotation, which avoids thrashing
// the whole pool for one setting.
func (m *Manager) SetRobotInputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.robotInput == port {
		return
	}
	m.robotInput = port
	m.logger.Debug("robot input port set", "port", port)
}

// SetRobotOutputPort changes the port data is sent to the robot on.
func (m *Manager) SetRobotOutputPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.robotOutput == port {
		return
	}
	m.robotOutput = port
	if m.robotSender != nil && port != ds.DisabledPort && m.robotIP != "" {
		m.robotSender.connectTo(m.robotIP, port)
	}
	m.logger.Debug("robot output port set", "port", port)
}

// --------------------------------------------------------------------------
// Pool and socket-kind control
// --------------------------------------------------------------------------

// SetCustomSocketCount overrides the pool auto-sizing and rebuilds the
// pool. Zero returns to auto-sizing.
func (m *Manager) SetCustomSocketCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.customCount == count {
		return
	}
	m.customCount = count
	m.generateSocketPairsLocked()
	m.logger.Debug("custom socket count set", "count", count)
}

// SetFMSSocketType replaces the FMS sender and receiver with sockets
// of the given kind. The new receiver stays unbound until the next
// port change.
func (m *Manager) SetFMSSocketType(kind ds.SocketType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fmsType == kind {
		return
	}
	m.fmsType = kind
	if m.fmsSender != nil {
		m.fmsSender.close()
	}
	if m.fmsReceiver != nil {
		m.fmsReceiver.close()
	}
	m.fmsSender = newConn(kind, m.logger)
	m.fmsReceiver = newConn(kind, m.logger)
	m.fmsReceiver.onData = m.poster(chanFMS)
	m.logger.Debug("fms socket type set", "type", kind)
}

// SetRadioSocketType replaces the radio sender and receiver with
// sockets of the given kind.
func (m *Manager) SetRadioSocketType(kind ds.SocketType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.radioType == kind {
		return
	}
	m.radioType = kind
	if m.radioSender != nil {
		m.radioSender.close()
	}
	if m.radioReceiver != nil {
		m.radioReceiver.close()
	}
	m.radioSender = newConn(kind, m.logger)
	m.radioReceiver = newConn(kind, m.logger)
	m.radioReceiver.onData = m.poster(chanRadio)
	m.logger.Debug("radio socket type set", "type", kind)
}

// SetRobotSocketType replaces the single robot sender with a socket of
// the given kind; TCP dials the robot eagerly. The pool keeps its
// previous kind until the next pool regeneration (SetCustomSocketCount
// or SetAddressList).
func (m *Manager) SetRobotSocketType(kind ds.SocketType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.robotType == kind {
		return
	}
	m.robotType = kind
	if m.robotSender != nil {
		m.robotSender.close()
	}
	m.robotSender = newConn(kind, m.logger)
	if kind == ds.SocketTCP {
		m.robotSender.connectTo(m.robotIP, m.robotOutput)
	}
	m.logger.Debug("robot socket type set", "type", kind)
}

func (m *Manager) generateSocketPairsLocked() {
	m.clearPoolLocked()
	count := m.socketCountLocked()
	for i := 0; i < count; i++ {
		sender := newConn(m.robotType, m.logger)
		receiver := newConn(m.robotType, m.logger)
		receiver.onData = m.poster(chanRobot)
		m.robotSenders = append(m.robotSenders, sender)
		m.robotReceivers = append(m.robotReceivers, receiver)
	}
	telemetry.PoolSize(count)
}

func (m *Manager) clearPoolLocked() {
	m.iterator = 0
	for _, c := range m.robotSenders {
		c.close()
	}
	for _, c := range m.robotReceivers {
		c.close()
	}
	m.robotSenders = nil
	m.robotReceivers = nil
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

func (m *Manager) poster(channel channelKind) func(source string, data []byte) {
	return func(source string, data []byte) {
		dg := datagram{channel: channel, source: source, data: data}
		select {
		case m.events <- dg:
		case <-m.done:
		}
	}
}

func (m *Manager) dispatch() {
	for {
		select {
		case <-m.done:
			return
		case dg := <-m.events:
			m.handle(dg)
		}
	}
}

func (m *Manager) handle(dg datagram) {
	telemetry.DatagramReceived(dg.channel.String())
	switch dg.channel {
	case chanFMS:
		if cb := m.OnFMSPacket; cb != nil {
			cb(dg.data)
		}
	case chanRadio:
		if cb := m.OnRadioPacket; cb != nil {
			cb(dg.data)
		}
	case chanRobot:
		if len(dg.data) == 0 {
			return
		}
		m.mu.Lock()
		if m.robotIP == "" && dg.source != "" {
			m.setRobotAddressLocked(dg.source)
		}
		m.mu.Unlock()
		if cb := m.OnRobotPacket; cb != nil {
			cb(dg.data)
		}
	}
}

// Close tears down every socket and stops the dispatch goroutine.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	for _, c := range []*conn{m.fmsSender, m.fmsReceiver, m.radioSender, m.radioReceiver, m.robotSender} {
		if c != nil {
			c.close()
		}
	}
	m.clearPoolLocked()
	m.mu.Unlock()
	m.logger.Debug("socket manager closed")
}
