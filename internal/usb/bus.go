package usb

import (
	"errors"

	"github.com/mutenix-org/mutenixd/internal/core"
)

var (
	ErrNotFound = errors.New("device not found")
)

// USB joins several buses into one core.USBBus.
type USB struct {
	buses []core.USBBus
}

func Init(buses ...core.USBBus) *USB {
	return &USB{
		buses: buses,
	}
}

func (b *USB) Has(path string) bool {
	for _, b := range b.buses {
		if b.Has(path) {
			return true
		}
	}
	return false
}

func (b *USB) Enumerate() ([]core.USBInfo, error) {
	var infos []core.USBInfo

	for _, b := range b.buses {
		l, err := b.Enumerate()
		if err != nil {
			return nil, err
		}
		infos = append(infos, l...)
	}
	return infos, nil
}

func (b *USB) Connect(path string) (core.USBDevice, error) {
	for _, b := range b.buses {
		if b.Has(path) {
			return b.Connect(path)
		}
	}
	return nil, ErrNotFound
}
