package proto2015

// UDP ports of the 2015 control protocol.
const (
	// RobotPort is where the robot listens for client packets.
	RobotPort = 1110
	// ClientPort is where the client listens for robot packets.
	ClientPort = 1150
)

// Section tags.
const (
	generalHeader  byte = 0x01
	joystickHeader byte = 0x0C
)

// Operation mode codes carried in the client packet's control byte.
const (
	opDisabled      byte = 0x00
	opTeleOperated  byte = 0x04
	opTest          byte = 0x05
	opAutonomous    byte = 0x06
	opEmergencyStop byte = 0x80
)

// Robot status requests carried in the client packet's status byte.
// A request stays pending until the caller resets it; the robot acts
// on the next packet that carries it.
const (
	StatusNormal      byte = 0x00
	StatusRestartCode byte = 0x04
	StatusRebootRobot byte = 0x08
)

// Alliance station codes.
const (
	allianceRed1  byte = 0x00
	allianceRed2  byte = 0x01
	allianceRed3  byte = 0x02
	allianceBlue1 byte = 0x03
	allianceBlue2 byte = 0x04
	allianceBlue3 byte = 0x05
)

// Inbound robot packet field offsets.
const (
	robotDataControlEcho  = 3 // echoed control byte
	robotDataStatus       = 4 // program status, 0x00 = no code
	robotDataVoltageMajor = 5 // integer volts
	robotDataVoltageMinor = 6 // centivolts
)

// robotPacketMinLength is the shortest decodable robot packet.
const robotPacketMinLength = 8

// programNone marks "no user code running" in the status byte.
const programNone byte = 0x00
