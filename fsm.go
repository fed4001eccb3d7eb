package volink

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// txState is the transaction engine state.
type txState int

const (
	stateIdle txState = iota
	stateSending
	stateAwaiting
	stateValidating
	stateRetrying
	stateSuccess
	stateFailed
)

func (s txState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateSending:
		return "Sending"
	case stateAwaiting:
		return "AwaitingResponse"
	case stateValidating:
		return "Validating"
	case stateRetrying:
		return "Retrying"
	case stateSuccess:
		return "Success"
	case stateFailed:
		return "Failed"
	}
	return fmt.Sprintf("txState(%d)", int(s))
}

// errResponseMismatch marks a structurally valid frame that does not
// answer the outstanding request. Treated like frame corruption.
var errResponseMismatch = errors.New("response does not match request")

// retryable reports whether err may be fixed by resending the request.
// Registry and value errors never land here; a closed transport is
// fatal for the link.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrClosed):
		return false
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrShortWrite),
		errors.Is(err, ErrTruncated),
		errors.Is(err, ErrBadChecksum),
		errors.Is(err, ErrUnknownCommandType),
		errors.Is(err, ErrDeviceError),
		errors.Is(err, errResponseMismatch):
		return true
	}
	return false
}

// initLink performs the P300 wake sequence. The interface answers ENQ
// while waiting for the sync sequence, ACK once it is up, and NAK (or
// silence) when it needs a reset first.
func (d *Device) initLink() error {
	if d.initialized {
		return nil
	}
	b := make([]byte, 1)
	for i := 0; i < d.InitRetries; i++ {
		_, err := d.transport.ReadDeadline(b, time.Now().Add(d.ReadTimeout))
		if errors.Is(err, ErrTimeout) {
			log.Debugf("init step %d: no answer, sending reset", i)
			if _, werr := d.transport.Write([]byte{EOT}); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			return err
		}
		switch b[0] {
		case ACK:
			log.Debugf("init step %d: link up", i)
			d.initialized = true
			return nil
		case ENQ:
			log.Debugf("init step %d: interface ready, sending sync", i)
			if _, err := d.transport.Write(SyncSeq); err != nil {
				return err
			}
		default:
			log.Debugf("init step %d: received 0x%02x, sending reset", i, b[0])
			if _, err := d.transport.Write([]byte{EOT}); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: link initialization gave up after %d attempts", ErrTimeout, d.InitRetries)
}

// readFull fills p from the transport, waiting at most until deadline.
func (d *Device) readFull(p []byte, deadline time.Time) error {
	got := 0
	for got < len(p) {
		n, err := d.transport.ReadDeadline(p[got:], deadline)
		if err != nil {
			return err
		}
		got += n
	}
	return nil
}

// recvFrame collects one raw frame from the transport. The link may
// still carry stale bytes from an aborted exchange (or the ACK the
// interface emits before a response telegram), so leading bytes that are
// not the start byte are discarded, up to the resync window.
func (d *Device) recvFrame(deadline time.Time) ([]byte, error) {
	b := make([]byte, 1)
	skipped := 0
	for {
		if err := d.readFull(b, deadline); err != nil {
			return nil, err
		}
		if b[0] == StartByte {
			break
		}
		skipped++
		log.Debugf("resync: discarding leading byte 0x%02x (%d/%d)", b[0], skipped, d.ResyncWindow)
		if skipped > d.ResyncWindow {
			return nil, fmt.Errorf("%w: no start byte within %d bytes", ErrTruncated, d.ResyncWindow)
		}
	}

	// protocol byte, command type, address, length
	hdr := make([]byte, 5)
	if err := d.readFull(hdr, deadline); err != nil {
		return nil, err
	}
	rest := make([]byte, int(hdr[4])+1) // payload and checksum
	if err := d.readFull(rest, deadline); err != nil {
		return nil, err
	}

	raw := make([]byte, 0, frameOverhead+len(rest)-1)
	raw = append(raw, StartByte)
	raw = append(raw, hdr...)
	raw = append(raw, rest...)
	return raw, nil
}

// validate decodes raw and checks that it answers the outstanding
// request: matching command type and address, and for reads the payload
// width announced by the descriptor. A write response may come with an
// empty payload or with an echo of the written bytes.
func validate(raw []byte, reqType CommandType, cmd Command, args []byte) (*Frame, error) {
	f, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	if f.Type.IsError() {
		return nil, fmt.Errorf("%w for command %q", ErrDeviceError, cmd.Name)
	}
	if !f.Type.Responds(reqType) {
		return nil, fmt.Errorf("%w: request 0x%02x answered by 0x%02x", errResponseMismatch, byte(reqType), byte(f.Type))
	}
	if f.Addr != cmd.Addr {
		return nil, fmt.Errorf("%w: address 0x%04x, want 0x%04x", errResponseMismatch, f.Addr, cmd.Addr)
	}
	switch reqType {
	case ReadRequest:
		if len(f.Payload) != cmd.Length {
			return nil, fmt.Errorf("%w: read returned %d bytes, want %d", errResponseMismatch, len(f.Payload), cmd.Length)
		}
	case WriteRequest:
		if len(f.Payload) > 0 && !bytes.Equal(f.Payload, args) {
			return nil, fmt.Errorf("%w: write echo differs from written data", errResponseMismatch)
		}
	}
	return f, nil
}

// transact drives one read or write exchange to a terminal outcome,
// hiding transport flakiness from the caller. args is the encoded value
// for a write and nil for a read.
func (d *Device) transact(cmd Command, dir Direction, args []byte) ([]byte, error) {
	d.cmdLock.Lock()
	defer d.cmdLock.Unlock()

	if err := d.initLink(); err != nil {
		return nil, &CommandError{Name: cmd.Name, Err: err}
	}

	reqType := ReadRequest
	length := cmd.Length
	if dir == Write {
		reqType = WriteRequest
		length = len(args)
	}

	var (
		state    = stateSending
		prev     = stateIdle
		attempts int
		lastErr  error
		raw      []byte
		resp     *Frame
	)

	for {
		if prev != state {
			log.Debugf("command %q: %v --> %v", cmd.Name, prev, state)
		}
		prev = state

		switch state {
		case stateSending:
			attempts++
			req := EncodeFrame(reqType, cmd.Addr, length, args)
			n, err := d.transport.Write(req)
			if err == nil && n < len(req) {
				err = fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(req))
			}
			if err != nil {
				lastErr = err
				state = stateRetrying
				break
			}
			state = stateAwaiting

		case stateAwaiting:
			var err error
			raw, err = d.recvFrame(time.Now().Add(d.ReadTimeout))
			if err != nil {
				lastErr = err
				state = stateRetrying
				break
			}
			state = stateValidating

		case stateValidating:
			var err error
			resp, err = validate(raw, reqType, cmd, args)
			if err != nil {
				lastErr = err
				state = stateRetrying
				break
			}
			if _, err := d.transport.Write([]byte{ACK}); err != nil {
				log.Warnf("command %q: could not acknowledge response: %v", cmd.Name, err)
			}
			state = stateSuccess

		case stateRetrying:
			if !retryable(lastErr) || attempts >= d.MaxAttempts {
				state = stateFailed
				break
			}
			log.Warnf("command %q: attempt %d/%d failed: %v", cmd.Name, attempts, d.MaxAttempts, lastErr)
			state = stateSending

		case stateSuccess:
			return resp.Payload, nil

		case stateFailed:
			return nil, &CommandError{Name: cmd.Name, Attempts: attempts, Err: lastErr}
		}
	}
}
