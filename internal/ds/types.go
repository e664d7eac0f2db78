package ds

import "fmt"

// ControlMode represents the robot operation mode requested by the client.
type ControlMode int

const (
	ControlDisabled ControlMode = iota
	ControlTeleOperated
	ControlAutonomous
	ControlTest
	ControlEmergencyStop
)

func (m ControlMode) String() string {
	switch m {
	case ControlDisabled:
		return "disabled"
	case ControlTeleOperated:
		return "teleoperated"
	case ControlAutonomous:
		return "autonomous"
	case ControlTest:
		return "test"
	case ControlEmergencyStop:
		return "emergency-stop"
	}
	return fmt.Sprintf("ControlMode(%d)", int(m))
}

// Alliance represents the match-side assignment of the team.
type Alliance int

const (
	AllianceRed1 Alliance = iota
	AllianceRed2
	AllianceRed3
	AllianceBlue1
	AllianceBlue2
	AllianceBlue3
)

func (a Alliance) String() string {
	switch a {
	case AllianceRed1:
		return "red-1"
	case AllianceRed2:
		return "red-2"
	case AllianceRed3:
		return "red-3"
	case AllianceBlue1:
		return "blue-1"
	case AllianceBlue2:
		return "blue-2"
	case AllianceBlue3:
		return "blue-3"
	}
	return fmt.Sprintf("Alliance(%d)", int(a))
}

// SocketType selects the transport used by a communication channel.
type SocketType int

const (
	SocketUDP SocketType = iota
	SocketTCP
)

func (t SocketType) String() string {
	if t == SocketTCP {
		return "tcp"
	}
	return "udp"
}

// DisabledPort marks a channel port as unused. Sends and binds on a
// disabled port are silent no-ops.
const DisabledPort = 0

// Joystick is an instantaneous reading of one attached joystick.
// Axes are nominal -1.0..+1.0, POV hats are -1 or 0..359 degrees.
type Joystick struct {
	NumAxes    int
	NumButtons int
	NumPOVHats int
	Axes       []float64
	Buttons    []bool
	POVHats    []int16
}

// StaticIP returns the static field address 10.TE.AM.host for a team
// number, e.g. team 3794 host 1 yields "10.37.94.1".
func StaticIP(team, host int) string {
	return fmt.Sprintf("10.%d.%d.%d", team/100, team%100, host)
}
