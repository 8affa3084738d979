// Package udp implements the client side of the RDP UDP transport
// (MS-RDPEUDP) plus the MS-RDPEMT security and tunnel layers above it.
// A Tunnel produced here is the sideband transport a caller bootstraps
// when the connection sequence reports a multitransport offer.
package udp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/go-rdp/rdpcore/internal/protocol/rdpeudp"
)

// Connection states per MS-RDPEUDP 3.1.5.
type State int

const (
	StateClosed State = iota
	StateSynSent
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

const (
	// maxSynRetries bounds SYN retransmission (MS-RDPEUDP 3.1.6.1
	// allows three to five attempts).
	maxSynRetries = 3
	// maxDataRetries bounds data retransmission before the connection
	// is declared dead.
	maxDataRetries = 5
	// retransmitTimeout is the minimum retransmit interval.
	retransmitTimeout = 300 * time.Millisecond
)

var (
	ErrClosed           = errors.New("udp: connection closed")
	ErrTimeout          = errors.New("udp: connection timeout")
	ErrInvalidState     = errors.New("udp: invalid state for operation")
	ErrConnectionFailed = errors.New("udp: connection establishment failed")
)

// Config holds the dial parameters for one RDPEUDP connection.
type Config struct {
	RemoteAddr *net.UDPAddr
	LocalAddr  *net.UDPAddr

	MTU           uint16
	ReceiveWindow uint16
}

func (c *Config) withDefaults() {
	if c.MTU == 0 {
		c.MTU = rdpeudp.DefaultMTU
	}

	if c.ReceiveWindow == 0 {
		c.ReceiveWindow = rdpeudp.DefaultReceiveWindow
	}
}

// Connection is a client-side RDPEUDP connection. It presents a byte
// stream over sequenced datagrams: writes become DATA packets
// retransmitted until acknowledged, reads drain in-sequence payloads.
type Connection struct {
	mu sync.Mutex

	config Config
	conn   *net.UDPConn
	state  State

	localSeq      uint32
	nextSendSeq   uint32
	nextExpectSeq uint32

	upstreamMTU   uint16
	downstreamMTU uint16

	unacked    map[uint32]*sentPacket
	outOfOrder map[uint32][]byte
	pending    []byte

	recvChan    chan []byte
	established chan struct{}
	closeChan   chan struct{}
	closedOnce  sync.Once

	readDeadline time.Time
}

type sentPacket struct {
	data    []byte
	retries int
	lastTry time.Time
}

// NewConnection prepares a connection; Connect performs the handshake.
func NewConnection(config Config) (*Connection, error) {
	if config.RemoteAddr == nil {
		return nil, errors.New("udp: remote address required")
	}

	config.withDefaults()

	seq, err := randomSequenceNumber()
	if err != nil {
		return nil, err
	}

	return &Connection{
		config:      config,
		state:       StateClosed,
		localSeq:    seq,
		nextSendSeq: seq + 1,
		unacked:     make(map[uint32]*sentPacket),
		outOfOrder:  make(map[uint32][]byte),
		recvChan:    make(chan []byte, 64),
		established: make(chan struct{}),
		closeChan:   make(chan struct{}),
	}, nil
}

// The initial sequence number must come from a real random source
// (MS-RDPEUDP 3.1.5.1.1).
func randomSequenceNumber() (uint32, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 32))
	if err != nil {
		return 0, fmt.Errorf("udp: sequence number: %w", err)
	}

	return uint32(n.Uint64()), nil
}

// Connect dials the peer and runs the SYN / SYN+ACK / ACK handshake,
// retransmitting the SYN with exponential backoff.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return ErrInvalidState
	}

	conn, err := net.DialUDP("udp", c.config.LocalAddr, c.config.RemoteAddr)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("udp: dial: %w", err)
	}

	c.conn = conn
	c.state = StateSynSent
	c.mu.Unlock()

	go c.receiveLoop()

	syn := rdpeudp.NewSYNPacket(c.localSeq, c.config.MTU, c.config.MTU)
	syn.Header.ReceiveWindow = c.config.ReceiveWindow

	for attempt := 0; attempt < maxSynRetries; attempt++ {
		if err := c.sendPacket(syn); err != nil {
			c.Close()
			return err
		}

		timer := time.NewTimer(retransmitTimeout << uint(attempt))
		select {
		case <-c.established:
			timer.Stop()
			return nil
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.Close()
			return ErrTimeout
		case <-c.closeChan:
			timer.Stop()
			return ErrClosed
		}
	}

	c.Close()

	return ErrConnectionFailed
}

func (c *Connection) receiveLoop() {
	buf := make([]byte, 2048)

	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			c.teardown()
			return
		}

		packet := &rdpeudp.Packet{}
		if err := packet.Deserialize(buf[:n]); err != nil {
			continue // malformed datagram, drop
		}

		c.handlePacket(packet)

		select {
		case <-c.closeChan:
			return
		default:
		}
	}
}

func (c *Connection) handlePacket(packet *rdpeudp.Packet) {
	c.mu.Lock()

	switch c.state {
	case StateSynSent:
		c.handleSynAck(packet)
		c.mu.Unlock()
	case StateEstablished:
		c.handleEstablished(packet)
	default:
		c.mu.Unlock()
	}
}

// handleSynAck completes the handshake. Caller holds the lock.
func (c *Connection) handleSynAck(packet *rdpeudp.Packet) {
	if !packet.Header.HasFlag(rdpeudp.FlagSYN) || !packet.Header.HasFlag(rdpeudp.FlagACK) {
		return
	}

	// the SYN+ACK acknowledges our initial sequence number
	if packet.Header.SnSourceAck != c.localSeq {
		return
	}

	if packet.SynData == nil {
		return
	}

	c.nextExpectSeq = packet.SynData.InitialSequenceNumber + 1
	c.upstreamMTU = minUint16(c.config.MTU, packet.SynData.UpstreamMTU)
	c.downstreamMTU = minUint16(c.config.MTU, packet.SynData.DownstreamMTU)
	c.state = StateEstablished

	close(c.established)

	ack := rdpeudp.NewACKPacket(packet.SynData.InitialSequenceNumber, c.config.ReceiveWindow)
	c.writeDatagram(ack)
}

// handleEstablished processes ACKs, data and FIN. Caller holds the
// lock; it is released before delivering payloads to recvChan.
func (c *Connection) handleEstablished(packet *rdpeudp.Packet) {
	if packet.Header.HasFlag(rdpeudp.FlagACK) {
		// cumulative ACK: everything at or below snSourceAck arrived
		for seq := range c.unacked {
			if seq <= packet.Header.SnSourceAck {
				delete(c.unacked, seq)
			}
		}
	}

	if packet.Header.HasFlag(rdpeudp.FlagFIN) {
		c.mu.Unlock()
		c.teardown()
		return
	}

	var deliverable [][]byte

	if packet.Header.HasFlag(rdpeudp.FlagDAT) && packet.DataHeader != nil {
		seq := packet.DataHeader.SnSourceStart

		switch {
		case seq == c.nextExpectSeq:
			deliverable = append(deliverable, packet.Payload)
			c.nextExpectSeq++

			// drain any buffered successors
			for {
				payload, ok := c.outOfOrder[c.nextExpectSeq]
				if !ok {
					break
				}

				delete(c.outOfOrder, c.nextExpectSeq)
				deliverable = append(deliverable, payload)
				c.nextExpectSeq++
			}
		case seq > c.nextExpectSeq:
			c.outOfOrder[seq] = packet.Payload
		}
		// seq < nextExpectSeq is a duplicate: ack it again, deliver nothing

		ack := rdpeudp.NewACKPacket(c.nextExpectSeq-1, c.config.ReceiveWindow)
		c.writeDatagram(ack)
	}

	c.mu.Unlock()

	for _, payload := range deliverable {
		select {
		case c.recvChan <- payload:
		case <-c.closeChan:
			return
		}
	}
}

// Read returns in-sequence payload bytes, buffering any remainder of a
// datagram that does not fit b.
func (c *Connection) Read(b []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()

		return n, nil
	}
	deadline := c.readDeadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case payload := <-c.recvChan:
		n := copy(b, payload)
		if n < len(payload) {
			c.mu.Lock()
			c.pending = append(c.pending, payload[n:]...)
			c.mu.Unlock()
		}

		return n, nil
	case <-timeout:
		return 0, ErrTimeout
	case <-c.closeChan:
		return 0, ErrClosed
	}
}

// Write sends b as one DATA packet and retransmits until the peer
// acknowledges it.
func (c *Connection) Write(b []byte) (int, error) {
	c.mu.Lock()
	if c.state != StateEstablished {
		c.mu.Unlock()
		return 0, ErrClosed
	}

	seq := c.nextSendSeq
	c.nextSendSeq++

	packet := rdpeudp.NewDataPacket(seq, c.nextExpectSeq-1, b, c.config.ReceiveWindow)
	data := packet.Serialize()

	c.unacked[seq] = &sentPacket{data: data, lastTry: time.Now()}

	if _, err := c.conn.Write(data); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.mu.Unlock()

	if err := c.awaitAck(seq); err != nil {
		return 0, err
	}

	return len(b), nil
}

// awaitAck polls until the receive loop clears seq, retransmitting on
// the retransmit interval.
func (c *Connection) awaitAck(seq uint32) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-c.closeChan:
			return ErrClosed
		}

		c.mu.Lock()
		sent, waiting := c.unacked[seq]
		if !waiting {
			c.mu.Unlock()
			return nil
		}

		if time.Since(sent.lastTry) >= retransmitTimeout {
			if sent.retries >= maxDataRetries {
				c.mu.Unlock()
				c.teardown()

				return ErrTimeout
			}

			sent.retries++
			sent.lastTry = time.Now()
			c.conn.Write(sent.data)
		}
		c.mu.Unlock()
	}
}

// writeDatagram sends without retransmission tracking. Caller holds the
// lock.
func (c *Connection) writeDatagram(packet *rdpeudp.Packet) {
	if c.conn != nil {
		c.conn.Write(packet.Serialize())
	}
}

func (c *Connection) sendPacket(packet *rdpeudp.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}

	if _, err := c.conn.Write(packet.Serialize()); err != nil {
		return fmt.Errorf("udp: send: %w", err)
	}

	return nil
}

func (c *Connection) teardown() {
	c.closedOnce.Do(func() { close(c.closeChan) })

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
}

// Close sends FIN when established and releases the socket.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateEstablished && c.conn != nil {
		fin := rdpeudp.NewFINPacket(c.nextExpectSeq - 1)
		c.conn.Write(fin.Serialize())
	}
	conn := c.conn
	c.mu.Unlock()

	c.teardown()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// ConnectionState reports the connection phase.
func (c *Connection) ConnectionState() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// net.Conn surface, so TLS and DTLS can run on top.

func (c *Connection) LocalAddr() net.Addr {
	if c.conn != nil {
		return c.conn.LocalAddr()
	}

	return nil
}

func (c *Connection) RemoteAddr() net.Addr {
	if c.conn != nil {
		return c.conn.RemoteAddr()
	}

	return nil
}

func (c *Connection) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()

	return nil
}

func (c *Connection) SetWriteDeadline(time.Time) error { return nil }

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}

	return b
}
