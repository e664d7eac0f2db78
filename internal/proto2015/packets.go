package proto2015

import (
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/K9-guardian/QDriverStation/internal/ds"
)

// controlCode maps a control mode to its wire byte. Unknown modes fall
// back to disabled with a diagnostic.
func controlCode(mode ds.ControlMode, logger *slog.Logger) byte {
	switch mode {
	case ds.ControlDisabled:
		return opDisabled
	case ds.ControlTeleOperated:
		return opTeleOperated
	case ds.ControlAutonomous:
		return opAutonomous
	case ds.ControlTest:
		return opTest
	case ds.ControlEmergencyStop:
		return opEmergencyStop
	}
	logger.Error("invalid control mode, sending disabled", "mode", int(mode))
	return opDisabled
}

// allianceCode maps an alliance to its station byte. Unknown values
// fall back to red 1 with a diagnostic.
func allianceCode(alliance ds.Alliance, logger *slog.Logger) byte {
	switch alliance {
	case ds.AllianceRed1:
		return allianceRed1
	case ds.AllianceRed2:
		return allianceRed2
	case ds.AllianceRed3:
		return allianceRed3
	case ds.AllianceBlue1:
		return allianceBlue1
	case ds.AllianceBlue2:
		return allianceBlue2
	case ds.AllianceBlue3:
		return allianceBlue3
	}
	logger.Error("invalid alliance, sending red 1", "alliance", int(alliance))
	return allianceRed1
}

// controlModeFromEcho decodes the control byte echoed by the robot.
func controlModeFromEcho(code byte) (ds.ControlMode, bool) {
	switch code {
	case opDisabled:
		return ds.ControlDisabled, true
	case opTeleOperated:
		return ds.ControlTeleOperated, true
	case opAutonomous:
		return ds.ControlAutonomous, true
	case opTest:
		return ds.ControlTest, true
	case opEmergencyStop:
		return ds.ControlEmergencyStop, true
	}
	return ds.ControlDisabled, false
}

// joystickSize returns the value of the leading size byte of one
// joystick section: tag fields plus axes, packed buttons and two
// bytes per POV hat.
func joystickSize(js *ds.Joystick) int {
	return 5 + js.NumAxes + (js.NumButtons+7)/8 + 2*js.NumPOVHats
}

// axisByte scales a -1.0..+1.0 axis onto a signed byte by truncating
// axis * 127.5. The formula is bit-exact with deployed robots of this
// era; do not "fix" the rounding.
func axisByte(axis float64) byte {
	return byte(int8(axis * (0xFF / 2.0)))
}

// appendJoystick appends one joystick section to buf:
//
//	u8  size
//	u8  joystickHeader
//	u8  numAxes
//	i8[numAxes] axes
//	u8  numButtons
//	u8[(numButtons+7)/8] buttons, LSB-first
//	u8  numPovHats
//	u16[numPovHats] hats, big-endian
func appendJoystick(buf []byte, js *ds.Joystick) []byte {
	buf = append(buf, byte(joystickSize(js)), joystickHeader, byte(js.NumAxes))
	for axis := 0; axis < js.NumAxes; axis++ {
		buf = append(buf, axisByte(js.Axes[axis]))
	}

	buf = append(buf, byte(js.NumButtons))
	packed := make([]byte, (js.NumButtons+7)/8)
	for button := 0; button < js.NumButtons; button++ {
		if js.Buttons[button] {
			packed[button/8] |= 1 << (button % 8)
		}
	}
	buf = append(buf, packed...)

	buf = append(buf, byte(js.NumPOVHats))
	for hat := 0; hat < js.NumPOVHats; hat++ {
		buf = binary.BigEndian.AppendUint16(buf, uint16(js.POVHats[hat]))
	}
	return buf
}

// JoystickFrame is one decoded joystick section.
type JoystickFrame struct {
	NumAxes    int
	NumButtons int
	NumPOVHats int
	Axes       []int8
	Buttons    []bool
	POVHats    []uint16
}

var errShortJoystickBlock = errors.New("joystick block truncated")

// ParseJoystickBlock decodes the joystick sections produced by
// appendJoystick, in order.
func ParseJoystickBlock(data []byte) ([]JoystickFrame, error) {
	var frames []JoystickFrame
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, errShortJoystickBlock
		}
		size := int(data[0])
		if data[1] != joystickHeader {
			return nil, errors.New("joystick block: bad section tag")
		}
		if len(data) < size {
			return nil, errShortJoystickBlock
		}
		section := data[2:size]
		data = data[size:]

		var frame JoystickFrame
		if len(section) < 1 {
			return nil, errShortJoystickBlock
		}
		frame.NumAxes = int(section[0])
		section = section[1:]
		if len(section) < frame.NumAxes {
			return nil, errShortJoystickBlock
		}
		for i := 0; i < frame.NumAxes; i++ {
			frame.Axes = append(frame.Axes, int8(section[i]))
		}
		section = section[frame.NumAxes:]

		if len(section) < 1 {
			return nil, errShortJoystickBlock
		}
		frame.NumButtons = int(section[0])
		section = section[1:]
		packedLen := (frame.NumButtons + 7) / 8
		if len(section) < packedLen {
			return nil, errShortJoystickBlock
		}
		for i := 0; i < frame.NumButtons; i++ {
			frame.Buttons = append(frame.Buttons, section[i/8]&(1<<(i%8)) != 0)
		}
		section = section[packedLen:]

		if len(section) < 1 {
			return nil, errShortJoystickBlock
		}
		frame.NumPOVHats = int(section[0])
		section = section[1:]
		if len(section) < 2*frame.NumPOVHats {
			return nil, errShortJoystickBlock
		}
		for i := 0; i < frame.NumPOVHats; i++ {
			frame.POVHats = append(frame.POVHats, binary.BigEndian.Uint16(section[2*i:]))
		}

		frames = append(frames, frame)
	}
	return frames, nil
}
