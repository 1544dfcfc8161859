package activestage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nolan-ca/rdp-activestage/internal/logging"
	"github.com/nolan-ca/rdp-activestage/internal/transport"
)

// Loop drives the receive side of an already-authenticated RDP session: it
// reads one complete framed PDU at a time, dispatches it to the X224 or
// fast-path processor, and flushes whatever reply bytes that produced back
// onto the connection before reading the next one. There is exactly one
// blocking point per iteration — the frame read — so a concurrent
// input-injection goroutine can write to conn without racing the loop, as
// long as it goes through conn's own locking (see transport.SplitStream).
type Loop struct {
	conn      io.ReadWriter
	x224      *X224Processor
	fastPath  *FastPathProcessor
	logger    *logging.Logger
	outBuffer bytes.Buffer
}

// NewLoop builds a Loop reading and writing frames over conn.
func NewLoop(conn io.ReadWriter, x224 *X224Processor, fastPath *FastPathProcessor, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Default()
	}
	return &Loop{conn: conn, x224: x224, fastPath: fastPath, logger: logger}
}

// Run processes frames until the connection closes, the server disconnects
// cleanly, or an unrecoverable error occurs. A clean end of stream (io.EOF)
// and a server-initiated disconnection both return nil; every other error
// is returned to the caller.
func (l *Loop) Run() error {
	for {
		if err := l.step(); err != nil {
			if errors.Is(err, io.EOF) {
				l.logger.Info("activestage: connection closed")
				return nil
			}

			var disconnect *transport.UnexpectedDisconnectionError
			if errors.As(err, &disconnect) {
				l.logger.Info("activestage: %s", disconnect.Error())
				return nil
			}

			var unexpectedChannel *transport.UnexpectedChannelError
			if errors.As(err, &unexpectedChannel) {
				l.logger.Warn("activestage: %s", unexpectedChannel.Error())
				return nil
			}

			return err
		}
	}
}

// step reads and dispatches exactly one framed PDU.
func (l *Loop) step() error {
	l.outBuffer.Reset()

	frame, err := transport.ReadFrame(l.conn)
	if err != nil {
		if errors.Is(err, transport.ErrNullLengthFastPath) {
			l.logger.Debug("activestage: dropping null-length fast-path packet")
			return nil
		}
		return err
	}

	switch frame.Kind {
	case transport.FrameX224:
		if err := l.x224.Process(frame.Body, &l.outBuffer); err != nil {
			return err
		}
	case transport.FrameFastPath:
		if err := l.fastPath.Process(frame.Header, frame.Body); err != nil {
			return err
		}
	default:
		return fmt.Errorf("activestage: unrecognized frame kind %d", frame.Kind)
	}

	if l.outBuffer.Len() > 0 {
		if _, err := l.conn.Write(l.outBuffer.Bytes()); err != nil {
			return err
		}
	}

	return nil
}
