package core

import (
	"io"
	"strings"
	"time"
)

// The usb package is not imported here. It links hidapi through cgo,
// which makes this package slow to build and impossible to test without
// a C toolchain, so the link talks to abstract interfaces instead.

// USB* interfaces are implemented in the usb package.

type USBBus interface {
	Enumerate() ([]USBInfo, error)
	Connect(path string) (USBDevice, error)
	Has(path string) bool
}

type USBInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string
}

// USBDevice is an open HID device. ReadTimeout returns 0 and no error
// when nothing arrived within timeout.
type USBDevice interface {
	io.Writer
	ReadTimeout(buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// product string fragment used when no identities are configured
const productName = "mutenix"

// DeviceIdentity selects a device. A zero vendor and product id with a
// serial matches on the serial alone.
type DeviceIdentity struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
}

func (d DeviceIdentity) matches(info USBInfo) bool {
	if d.VendorID == 0 && d.ProductID == 0 {
		return d.Serial != "" && info.Serial == d.Serial
	}
	if d.VendorID != info.VendorID || d.ProductID != info.ProductID {
		return false
	}
	return d.Serial == "" || d.Serial == info.Serial
}

// selectDevice tries the identities in order; without identities any
// device advertising the mutenix product name is taken.
func selectDevice(infos []USBInfo, identities []DeviceIdentity) (USBInfo, bool) {
	if len(identities) == 0 {
		for _, info := range infos {
			if strings.Contains(strings.ToLower(info.Product), productName) {
				return info, true
			}
		}
		return USBInfo{}, false
	}
	for _, id := range identities {
		for _, info := range infos {
			if id.matches(info) {
				return info, true
			}
		}
	}
	return USBInfo{}, false
}
