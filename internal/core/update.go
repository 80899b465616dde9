package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mutenix-org/mutenixd/internal/transfer"
	"github.com/mutenix-org/mutenixd/internal/wire"
)

const (
	updateBufferSize  = 100
	updateReadTimeout = time.Second
	stateChangeSleep  = 500 * time.Millisecond
)

// Progress is reported after every acknowledgment.
type Progress struct {
	File         string
	Index        int
	Files        int
	Acknowledged int
	Total        int
}

type updateConfig struct {
	settle         time.Duration
	readTimeout    time.Duration
	maxRetransmits int
	progress       func(Progress)
}

type UpdateOption func(*updateConfig)

// WithMaxRetransmits aborts the update with ErrUpdateStalled once a
// single chunk was retransmitted more than n times. Zero means no limit.
func WithMaxRetransmits(n int) UpdateOption {
	return func(c *updateConfig) {
		c.maxRetransmits = n
	}
}

func WithProgress(f func(Progress)) UpdateOption {
	return func(c *updateConfig) {
		c.progress = f
	}
}

// WithSettleTime overrides the pause around device state changes.
func WithSettleTime(d time.Duration) UpdateOption {
	return func(c *updateConfig) {
		c.settle = d
	}
}

// RunFirmwareUpdate transfers files to the device, one stop-and-wait
// session per file, then resets it. Paths ending in ".delete" remove the
// named file instead. The link's loops are paused for the whole run.
//
// Apart from ctx and WithMaxRetransmits nothing bounds the run; a device
// that never acknowledges a chunk keeps it going.
func (l *Link) RunFirmwareUpdate(ctx context.Context, files []string, opts ...UpdateOption) (err error) {
	cfg := updateConfig{
		settle:      stateChangeSleep,
		readTimeout: updateReadTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	begin := time.Now()
	defer func() {
		l.metrics.UpdateFinished(begin, err)
	}()

	l.devMutex.Lock()
	defer l.devMutex.Unlock()
	if l.dev == nil {
		return ErrNotConnected
	}

	log := l.log.WithField("Context", "update")
	log.Info("starting device update")

	if err := l.writeLocked(wire.Report(wire.PrepareUpdate{})); err != nil {
		return err
	}
	sleep(ctx, cfg.settle)

	sessions := make([]*transfer.Session, 0, len(files))
	for i, path := range files {
		s, err := transfer.OpenSession(uint16(i), path)
		if err != nil {
			return err
		}
		sessions = append(sessions, s)
	}
	log.Infof("prepared %d files for update", len(sessions))

	for i, s := range sessions {
		log.Infof("sending file %s (%d/%d)", s.Name(), i+1, len(sessions))
		if err := l.transferSession(ctx, log, s, i, len(sessions), &cfg); err != nil {
			return err
		}
		log.Infof("file %s transfer complete", s.Name())
	}

	sleep(ctx, cfg.settle)
	if err := ctx.Err(); err != nil {
		return err
	}
	done := transfer.CompleteChunk()
	if err := l.writeLocked(transferReport(&done)); err != nil {
		return err
	}
	sleep(ctx, cfg.settle)

	log.Info("resetting device")
	if err := l.writeLocked(wire.Report(wire.Reset{})); err != nil {
		return err
	}
	log.Info("device update complete")
	return nil
}

// transferSession expects devMutex to be held.
func (l *Link) transferSession(
	ctx context.Context,
	log *logrus.Entry,
	s *transfer.Session,
	index, files int,
	cfg *updateConfig,
) error {
	buf := make([]byte, updateBufferSize)

	var last *transfer.Chunk
	writes := 0

	for !s.IsComplete() {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := l.dev.ReadTimeout(buf, cfg.readTimeout)
		if err != nil {
			log.WithError(err).Warn("read during update failed")
		} else if n > 1 {
			if err := l.applyNotification(log, s, buf[1:n]); err != nil {
				return err
			}
			if cfg.progress != nil {
				cfg.progress(Progress{
					File:         s.Name(),
					Index:        index,
					Files:        files,
					Acknowledged: s.Acknowledged(),
					Total:        s.TotalChunks(),
				})
			}
		}

		c := s.NextUnacknowledged()
		if c == nil {
			break
		}
		if c == last {
			writes++
		} else {
			last, writes = c, 1
		}
		if cfg.maxRetransmits > 0 && writes > cfg.maxRetransmits+1 {
			return errors.Wrapf(ErrUpdateStalled, "%s of %s not acknowledged", c, s.Name())
		}

		log.Debugf("sending chunk %s of file %s", c, s.Name())
		if err := l.writeLocked(transferReport(c)); err != nil {
			return err
		}
		l.metrics.ChunkWritten(writes > 1)
	}
	return nil
}

func (l *Link) applyNotification(log *logrus.Entry, s *transfer.Session, data []byte) error {
	n, err := wire.ParseNotification(data)
	if err != nil {
		log.WithError(err).Debug("ignoring update frame")
		return nil
	}
	switch m := n.(type) {
	case wire.ChunkAck:
		if s.Acknowledge(m) {
			log.Debugf("acked chunk %s", m)
		}
	case wire.DeviceError:
		log.Error(m.String())
		return &DeviceError{Message: m.Message}
	case wire.LogMessage:
		if m.Level == wire.LogError {
			log.Errorf("device: %s", m.Message)
		} else {
			log.Debugf("device: %s", m.Message)
		}
	}
	return nil
}

func transferReport(c *transfer.Chunk) []byte {
	report := make([]byte, 0, transfer.PacketSize+1)
	report = append(report, wire.ReportIDTransfer)
	return append(report, c.Packet()...)
}
