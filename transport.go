package volink

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Transport is the duplex byte channel to the Optolink adapter. A
// transport is a serially reused resource: the engine never overlaps
// reads and writes.
type Transport interface {
	io.Writer
	// ReadDeadline reads up to len(p) bytes, returning as soon as at
	// least one byte is available. It waits no longer than deadline and
	// then returns ErrTimeout. A closed transport returns ErrClosed.
	ReadDeadline(p []byte, deadline time.Time) (int, error)
	io.Closer
}

// pollInterval is the serial port read granularity. tarm/serial has no
// per-call deadline, so reads poll with a short port timeout until the
// caller deadline expires.
const pollInterval = 20 * time.Millisecond

type serialTransport struct {
	port *serial.Port
	mu   sync.Mutex
	open bool
}

// OpenSerial opens an Optolink serial device with the P300 line
// parameters: 4800 baud, 8 data bits, even parity, 2 stop bits.
func OpenSerial(name string) (Transport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        4800,
		Size:        8,
		Parity:      serial.ParityEven,
		StopBits:    serial.Stop2,
		ReadTimeout: pollInterval,
	})
	if err != nil {
		return nil, err
	}
	return &serialTransport{port: port, open: true}, nil
}

func (s *serialTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrClosed
	}
	n, err := s.port.Write(p)
	log.Debugf("serial write b='%# x' n=%v err=%v", p, n, err)
	return n, err
}

func (s *serialTransport) ReadDeadline(p []byte, deadline time.Time) (int, error) {
	for {
		s.mu.Lock()
		open := s.open
		s.mu.Unlock()
		if !open {
			return 0, ErrClosed
		}
		n, err := s.port.Read(p)
		if n > 0 {
			log.Debugf("serial read b='%# x'", p[:n])
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, ErrTimeout
		}
	}
}

func (s *serialTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrClosed
	}
	s.open = false
	return s.port.Close()
}

type tcpTransport struct {
	conn net.Conn
}

// DialTCP connects to a serial-to-network bridge carrying the Optolink
// byte stream.
func DialTCP(addr string) (Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(30 * time.Second)
	}
	return &tcpTransport{conn: conn}, nil
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	log.Debugf("tcp write b='%# x' n=%v err=%v", p, n, err)
	if err != nil {
		return n, mapNetErr(err)
	}
	return n, nil
}

func (t *tcpTransport) ReadDeadline(p []byte, deadline time.Time) (int, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, mapNetErr(err)
	}
	n, err := t.conn.Read(p)
	if n > 0 {
		log.Debugf("tcp read b='%# x'", p[:n])
		return n, nil
	}
	if err != nil {
		return 0, mapNetErr(err)
	}
	return 0, nil
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

func mapNetErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrTimeout
	}
	if err == io.EOF {
		return ErrClosed
	}
	if _, ok := err.(*net.OpError); ok {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// Connect opens a transport from a connection string: socket://host:port
// or tcp://host:port for a network bridge, a plain path or file:// URL
// for a local serial device.
func Connect(link string) (Transport, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "socket", "tcp":
		return DialTCP(u.Host)
	case "file", "":
		return OpenSerial(u.Path)
	}
	return nil, fmt.Errorf("can not find a valid connection string in %q", link)
}
