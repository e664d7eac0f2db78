package sockets

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/K9-guardian/QDriverStation/internal/ds"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager returns a Manager whose LAN sweep sees no interfaces,
// so the address list is fully controlled by the test.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(testLogger())
	m.localAddrs = func() []string { return nil }
	t.Cleanup(m.Close)
	return m
}

// freeUDPPort reserves an ephemeral UDP port and returns it.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func TestSocketCount_Policy(t *testing.T) {
	tests := []struct {
		name      string
		addresses int
		custom    int
		want      int
	}{
		{"empty list", 0, 0, 1},
		{"small list", 5, 0, 1},
		{"one /24", 255, 0, 42},
		{"huge list auto-capped", 2000, 0, 72},
		{"custom", 100, 7, 7},
		{"custom capped", 0, 500, 128},
		{"custom zero falls back", 12, 0, 2},
	}
	for _, tt := range tests {
		m := newTestManager(t)
		m.addresses = make([]string, tt.addresses)
		m.customCount = tt.custom
		if got := m.SocketCount(); got != tt.want {
			t.Errorf("%s: SocketCount() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRefreshAddressList_AdvancesAndWraps(t *testing.T) {
	m := newTestManager(t)
	m.addresses = []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	m.customCount = 2

	m.RefreshAddressList()
	if m.iterator != 2 {
		t.Fatalf("iterator after first refresh = %d, want 2", m.iterator)
	}

	m.RefreshAddressList()
	if m.iterator != 0 {
		t.Fatalf("iterator after wrap = %d, want 0", m.iterator)
	}
}

func TestRefreshAddressList_IteratorStaysInBounds(t *testing.T) {
	for _, size := range []int{1, 3, 7, 12, 255} {
		for _, count := range []int{1, 2, 5, 72} {
			m := newTestManager(t)
			m.addresses = make([]string, size)
			for i := range m.addresses {
				m.addresses[i] = fmt.Sprintf("10.0.%d.%d", i/254, i%254+1)
			}
			m.customCount = count

			for refresh := 0; refresh < 3*size; refresh++ {
				m.RefreshAddressList()
				if m.iterator < 0 || m.iterator >= size {
					t.Fatalf("size=%d count=%d: iterator %d out of [0,%d)", size, count, m.iterator, size)
				}
			}
		}
	}
}

func TestRefreshAddressList_CoversWholeList(t *testing.T) {
	const size = 11
	m := newTestManager(t)
	m.addresses = make([]string, size)
	for i := range m.addresses {
		m.addresses[i] = fmt.Sprintf("10.0.0.%d", i+1)
	}
	m.customCount = 3

	count := m.SocketCount()
	covered := make(map[int]bool)
	// The initial window before any refresh.
	for i := 0; i < count && i < size; i++ {
		covered[i] = true
	}

	rounds := (size + count - 1) / count
	for r := 0; r < rounds; r++ {
		m.RefreshAddressList()
		for i := 0; i < count; i++ {
			if m.iterator+i < size {
				covered[m.iterator+i] = true
			}
		}
	}

	for i := 0; i < size; i++ {
		if !covered[i] {
			t.Errorf("address %d never fell inside the probe window", i)
		}
	}
}

func TestRefreshAddressList_NoOpWhenLocked(t *testing.T) {
	m := newTestManager(t)
	m.addresses = []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	m.customCount = 1
	m.robotIP = "10.0.0.9"

	m.RefreshAddressList()
	if m.iterator != 0 {
		t.Errorf("iterator advanced to %d while robot address is locked", m.iterator)
	}
}

func TestRefreshAddressList_NoOpOnEmptyList(t *testing.T) {
	m := newTestManager(t)
	m.RefreshAddressList()
	if m.iterator != 0 {
		t.Errorf("iterator = %d on empty list, want 0", m.iterator)
	}
}

func TestSendToRobot_NoOpWithDisabledPortOrEmptyList(t *testing.T) {
	m := newTestManager(t)

	// Disabled port, nothing configured: must not panic.
	m.SendToRobot([]byte("X"))

	// Port set, empty list, no pool: still a total no-op.
	m.SetRobotOutputPort(freeUDPPort(t))
	m.SendToRobot([]byte("X"))
}

func TestSendToRobot_FanOutReachesCandidates(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	m := newTestManager(t)
	m.SetCustomSocketCount(1)
	m.SetAddressList(nil) // sweep yields just 127.0.0.1
	m.SetRobotOutputPort(port)

	m.SendToRobot([]byte("probe"))

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("fan-out datagram never arrived: %v", err)
	}
	if string(buf[:n]) != "probe" {
		t.Errorf("payload = %q, want probe", buf[:n])
	}
}

func TestSendToRobot_LockedAddressSendsUnicast(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	m := newTestManager(t)
	m.SetRobotOutputPort(port)
	m.SetRobotAddress("127.0.0.1")

	m.SendToRobot([]byte("direct"))

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("unicast datagram never arrived: %v", err)
	}
	if string(buf[:n]) != "direct" {
		t.Errorf("payload = %q, want direct", buf[:n])
	}
}

func TestRobotDiscovery_LocksSourceAddress(t *testing.T) {
	m := newTestManager(t)

	received := make(chan []byte, 1)
	m.OnRobotPacket = func(data []byte) {
		select {
		case received <- data:
		default:
		}
	}

	port := freeUDPPort(t)
	m.SetRobotInputPort(port)
	m.SetCustomSocketCount(1)
	m.SetAddressList(nil) // candidate list is just 127.0.0.1

	// First rotation binds pool slot 0 to 127.0.0.1:port.
	m.RefreshAddressList()

	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("robot says hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "robot says hi" {
			t.Errorf("payload = %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("robot packet event never fired")
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.RobotAddress() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := m.RobotAddress(); got != "127.0.0.1" {
		t.Fatalf("RobotAddress() = %q, want 127.0.0.1", got)
	}

	// A locked address freezes the scan window.
	before := m.iterator
	m.RefreshAddressList()
	if m.iterator != before {
		t.Error("RefreshAddressList advanced the window after lock")
	}
}

func TestSetRobotAddress_Idempotent(t *testing.T) {
	m := newTestManager(t)
	m.SetRobotAddress("10.0.0.7")
	m.SetRobotAddress("10.0.0.7")
	if got := m.RobotAddress(); got != "10.0.0.7" {
		t.Errorf("RobotAddress() = %q, want 10.0.0.7", got)
	}
}

func TestSetAddressList_PrependsExternalAddresses(t *testing.T) {
	m := newTestManager(t)
	m.SetAddressList([]string{"10.37.94.2", "10.37.94.3"})

	list := m.AddressList()
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3 (2 external + loopback)", len(list))
	}
	if list[0] != "10.37.94.2" || list[1] != "10.37.94.3" {
		t.Errorf("external addresses not first: %v", list)
	}
	if list[2] != "127.0.0.1" {
		t.Errorf("sweep tail = %q, want 127.0.0.1", list[2])
	}
}

func TestSetAddressList_RebuildsPool(t *testing.T) {
	m := newTestManager(t)
	m.SetAddressList(nil)

	if got := len(m.robotReceivers); got != m.SocketCount() {
		t.Errorf("pool size = %d, want %d", got, m.SocketCount())
	}
	if got := len(m.robotSenders); got != len(m.robotReceivers) {
		t.Errorf("senders %d != receivers %d", got, len(m.robotReceivers))
	}
}

func TestSetCustomSocketCount_ResizesPool(t *testing.T) {
	m := newTestManager(t)
	m.SetAddressList(nil)

	m.SetCustomSocketCount(4)
	if got := len(m.robotReceivers); got != 4 {
		t.Errorf("pool size = %d, want 4", got)
	}

	m.SetCustomSocketCount(0)
	if got := len(m.robotReceivers); got != m.SocketCount() {
		t.Errorf("pool size after auto-sizing = %d, want %d", got, m.SocketCount())
	}
}

func TestPortSetters_StoreValues(t *testing.T) {
	m := newTestManager(t)

	m.SetFMSOutputPort(1160)
	m.SetRadioOutputPort(1235)
	m.SetRobotOutputPort(1110)
	m.SetRobotInputPort(1150)

	if m.FMSOutputPort() != 1160 || m.RadioOutputPort() != 1235 ||
		m.RobotOutputPort() != 1110 || m.RobotInputPort() != 1150 {
		t.Error("port setters did not store their values")
	}
	if m.FMSInputPort() != ds.DisabledPort || m.RadioInputPort() != ds.DisabledPort {
		t.Error("untouched ports are not disabled")
	}
}

func TestSocketTypeSetters_ReplaceSingletons(t *testing.T) {
	m := newTestManager(t)

	oldSender := m.fmsSender
	m.SetFMSSocketType(ds.SocketTCP)
	if m.fmsSender == oldSender {
		t.Error("fms sender not replaced on socket type change")
	}

	// Same kind again is a no-op.
	current := m.fmsSender
	m.SetFMSSocketType(ds.SocketTCP)
	if m.fmsSender != current {
		t.Error("fms sender replaced without a kind change")
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	m := New(testLogger())
	m.localAddrs = func() []string { return nil }
	m.SetAddressList(nil)
	m.Close()
	m.Close()
}
