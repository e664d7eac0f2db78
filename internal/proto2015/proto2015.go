// Package proto2015 implements the 2015-era robot control protocol: a
// sequence-numbered client packet carrying control mode, alliance and
// joystick input, and a decoder for the robot's status packets. It
// derives default robot and radio addresses from the team number and
// pulls firmware version files from the robot once it first answers.
package proto2015

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/K9-guardian/QDriverStation/internal/ds"
	"github.com/K9-guardian/QDriverStation/internal/fetch"
	"github.com/K9-guardian/QDriverStation/internal/telemetry"
)

// Protocol holds the client-side state of one 2015 protocol session.
// Callback fields deliver decoded robot state; set them before traffic
// starts. Methods are safe for concurrent use.
type Protocol struct {
	logger  *slog.Logger
	fetcher fetch.Fetcher

	// OnVoltageChanged fires for every decoded robot packet.
	OnVoltageChanged func(volts float64)
	// OnCodeChanged fires when user-code presence flips.
	OnCodeChanged func(present bool)
	// OnControlModeChanged fires when the echoed control mode differs
	// from the last echo.
	OnControlModeChanged func(mode ds.ControlMode)
	// Version callbacks fire once the corresponding file is retrieved
	// and parsed after acquisition.
	OnLibVersionChanged func(version string)
	OnPCMVersionChanged func(version string)
	OnPDPVersionChanged func(version string)

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	team          int
	robotIP       string
	radioIP       string
	index         uint16
	justConnected bool
	status        byte
	controlMode   ds.ControlMode
	lastEcho      ds.ControlMode
	alliance      ds.Alliance
	robotCode     bool
	joysticks     []*ds.Joystick
}

// New creates a Protocol for the given team. The fetcher retrieves
// the version files on acquisition; pass nil to skip retrieval.
func New(team int, fetcher fetch.Fetcher, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Protocol{
		logger:  logger,
		fetcher: fetcher,
		ctx:     ctx,
		cancel:  cancel,
		team:    team,
	}
	p.Reset()
	return p
}

// --------------------------------------------------------------------------
// Addresses
// --------------------------------------------------------------------------

// Team returns the configured team number.
func (p *Protocol) Team() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.team
}

// SetTeam changes the team number used for derived addresses.
func (p *Protocol) SetTeam(team int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.team = team
}

// RobotAddress returns the configured robot address, or the mDNS-style
// default hostname derived from the team number when none is set.
func (p *Protocol) RobotAddress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.robotIP == "" {
		return fmt.Sprintf("roboRIO-%d.local", p.team)
	}
	return p.robotIP
}

// SetRobotAddress overrides the derived robot address. Empty restores
// the default.
func (p *Protocol) SetRobotAddress(ip string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.robotIP = ip
}

// RadioAddress returns the configured radio address, or the static
// team address 10.TE.AM.1 when none is set.
func (p *Protocol) RadioAddress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.radioIP == "" {
		return ds.StaticIP(p.team, 1)
	}
	return p.radioIP
}

// SetRadioAddress overrides the derived radio address. Empty restores
// the default.
func (p *Protocol) SetRadioAddress(ip string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.radioIP = ip
}

// --------------------------------------------------------------------------
// Control state
// --------------------------------------------------------------------------

// ControlMode returns the control mode carried by outbound packets.
func (p *Protocol) ControlMode() ds.ControlMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlMode
}

// SetControlMode changes the control mode carried by outbound packets.
func (p *Protocol) SetControlMode(mode ds.ControlMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controlMode = mode
}

// Alliance returns the alliance carried by outbound packets.
func (p *Protocol) Alliance() ds.Alliance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alliance
}

// SetAlliance changes the alliance carried by outbound packets.
func (p *Protocol) SetAlliance(alliance ds.Alliance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alliance = alliance
}

// SetJoysticks installs the joystick snapshot list read during packet
// generation. The list is externally maintained; the protocol only
// reads it.
func (p *Protocol) SetJoysticks(joysticks []*ds.Joystick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joysticks = joysticks
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Reset returns the session to its initial state: ping index zero,
// acquisition latch cleared, normal status, disabled control mode.
// Idempotent.
func (p *Protocol) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = 0
	p.justConnected = false
	p.status = StatusNormal
	p.controlMode = ds.ControlDisabled
	p.lastEcho = ds.ControlDisabled
}

// Reboot requests a robot controller reboot on every following packet
// until the caller resets.
func (p *Protocol) Reboot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusRebootRobot
}

// RestartCode requests a user-code restart on every following packet
// until the caller resets.
func (p *Protocol) RestartCode() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusRestartCode
}

// Close cancels any in-flight version retrieval.
func (p *Protocol) Close() {
	p.cancel()
}

// --------------------------------------------------------------------------
// Packets
// --------------------------------------------------------------------------

// GenerateClientPacket assembles the next outbound client packet. The
// ping index advances by one per call and wraps at 0xFFFF. Joystick
// input is included only in teleoperated mode.
func (p *Protocol) GenerateClientPacket() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.index++

	buf := make([]byte, 0, 64)
	buf = append(buf,
		byte(p.index>>8),
		byte(p.index),
		generalHeader,
		controlCode(p.controlMode, p.logger),
		p.status,
		allianceCode(p.alliance, p.logger),
	)

	if p.controlMode == ds.ControlTeleOperated {
		for _, js := range p.joysticks {
			buf = appendJoystick(buf, js)
		}
	}

	telemetry.ClientPacket()
	return buf
}

// ReadRobotData decodes one inbound robot packet and fires the
// matching callbacks. Short packets are dropped silently. The first
// valid packet after construction or Reset latches the acquisition
// flag and starts the version retrieval.
func (p *Protocol) ReadRobotData(data []byte) bool {
	if len(data) < robotPacketMinLength {
		return false
	}

	p.mu.Lock()
	voltage := float64(data[robotDataVoltageMajor]) + float64(data[robotDataVoltageMinor])/100

	code := data[robotDataStatus] != programNone
	codeChanged := p.robotCode != code
	p.robotCode = code

	mode, knownMode := controlModeFromEcho(data[robotDataControlEcho])
	modeChanged := knownMode && mode != p.lastEcho
	if modeChanged {
		p.lastEcho = mode
	}

	first := !p.justConnected
	p.justConnected = true
	p.mu.Unlock()

	telemetry.RobotPacket()
	telemetry.Voltage(voltage)

	if cb := p.OnVoltageChanged; cb != nil {
		cb(voltage)
	}
	if codeChanged {
		if cb := p.OnCodeChanged; cb != nil {
			cb(code)
		}
	}
	if !knownMode {
		p.logger.Debug("unknown control echo", "code", data[robotDataControlEcho])
	}
	if modeChanged {
		if cb := p.OnControlModeChanged; cb != nil {
			cb(mode)
		}
	}

	if first {
		p.logger.Info("robot acquired", "addr", p.RobotAddress())
		p.downloadRobotInformation()
	}
	return true
}
