package usb

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mutenix-org/mutenixd/internal/core"
)

// The emulator bus talks to virtual macropads over UDP, one HID report
// per datagram. It is meant for testing environments without hardware.

const (
	emulatorPrefix       = "emulator"
	emulatorNetwork      = "udp"
	emulatorHost         = "127.0.0.1"
	emulatorProbeTimeout = 100 * time.Millisecond
)

var (
	emulatorPing = []byte("PINGPING")
	emulatorPong = []byte("PONGPONG")
)

type Emulator struct {
	ports []int
}

func InitUDP(ports []int) (*Emulator, error) {
	return &Emulator{
		ports: ports,
	}, nil
}

func (b *Emulator) Enumerate() ([]core.USBInfo, error) {
	var infos []core.USBInfo

	for _, port := range b.ports {
		if b.hasEmulator(port) {
			infos = append(infos, core.USBInfo{
				Path:         emulatorPath(port),
				Serial:       fmt.Sprintf("udp-%d", port),
				Manufacturer: "mutenix",
				Product:      "Mutenix Emulator",
			})
		}
	}
	return infos, nil
}

func (b *Emulator) Has(path string) bool {
	return strings.HasPrefix(path, emulatorPrefix)
}

func (b *Emulator) hasEmulator(port int) bool {
	dev, err := b.dial(port)
	if err != nil {
		return false
	}
	defer dev.Close()

	_, err = dev.Write(emulatorPing)
	if err != nil {
		return false
	}

	response := make([]byte, len(emulatorPong))

	n, err := dev.ReadTimeout(response, emulatorProbeTimeout)
	if err != nil || n == 0 {
		return false
	}

	return bytes.Equal(response[:n], emulatorPong)
}

func (b *Emulator) Connect(path string) (core.USBDevice, error) {
	port, err := strconv.Atoi(strings.TrimPrefix(path, emulatorPrefix+":"))
	if err != nil {
		return nil, ErrNotFound
	}
	return b.dial(port)
}

func (b *Emulator) dial(port int) (*UDPDevice, error) {
	conn, err := net.Dial(emulatorNetwork, net.JoinHostPort(emulatorHost, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return &UDPDevice{conn: conn}, nil
}

func emulatorPath(port int) string {
	return emulatorPrefix + ":" + strconv.Itoa(port)
}

type UDPDevice struct {
	conn net.Conn
}

func (d *UDPDevice) Write(buf []byte) (int, error) {
	return d.conn.Write(buf)
}

func (d *UDPDevice) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	err := d.conn.SetReadDeadline(time.Now().Add(timeout))
	if err != nil {
		return 0, err
	}
	n, err := d.conn.Read(buf)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return 0, nil
	}
	return n, err
}

func (d *UDPDevice) Close() error {
	return d.conn.Close()
}
