// Package hidapi is the cgo backed HID bus. It is kept apart from the
// usb package so that everything else builds and tests without cgo.
package hidapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sstallion/go-hid"

	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/usb"
)

const (
	hidapiPrefix = "hid"
)

type Bus struct {
	log *logrus.Entry
}

// Init initializes the hidapi library; Close releases it.
func Init(log *logrus.Entry) (*Bus, error) {
	if err := hid.Init(); err != nil {
		return nil, err
	}
	return &Bus{log: log}, nil
}

func (b *Bus) Close() error {
	return hid.Exit()
}

func (b *Bus) Enumerate() ([]core.USBInfo, error) {
	var infos []core.USBInfo

	err := hid.Enumerate(0, 0, func(info *hid.DeviceInfo) error { // enumerate all devices
		infos = append(infos, core.USBInfo{
			Path:         b.identify(info),
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			Serial:       info.SerialNbr,
			Manufacturer: info.MfrStr,
			Product:      info.ProductStr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (b *Bus) Has(path string) bool {
	return strings.HasPrefix(path, hidapiPrefix)
}

func (b *Bus) Connect(path string) (core.USBDevice, error) {
	var raw string
	err := hid.Enumerate(0, 0, func(info *hid.DeviceInfo) error {
		if raw == "" && b.identify(info) == path {
			raw = info.Path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, usb.ErrNotFound
	}

	d, err := hid.OpenPath(raw)
	if err != nil {
		return nil, err
	}
	b.log.WithField("path", path).Debug("opened hid device")
	return &HID{
		dev: d,
	}, nil
}

// identify hides the platform specific hidapi path behind a stable id.
func (b *Bus) identify(dev *hid.DeviceInfo) string {
	path := []byte(dev.Path)
	digest := sha256.Sum256(path)
	return hidapiPrefix + hex.EncodeToString(digest[:])
}

type HID struct {
	dev *hid.Device
}

func (d *HID) Close() error {
	return d.dev.Close()
}

func (d *HID) Write(buf []byte) (int, error) {
	return d.dev.Write(buf)
}

func (d *HID) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	n, err := d.dev.ReadWithTimeout(buf, timeout)
	if err == hid.ErrTimeout {
		return 0, nil
	}
	return n, err
}
