// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"

	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// maxPortProbes bounds the sequential upward search for a free UDP port.
const maxPortProbes = 200

// Mode of frame delivery. Transitions only idle → prebuffer → live.
type Mode int

const (
	// ModeIdle discards reordered frames (before VAD is armed).
	ModeIdle Mode = iota
	// ModePreBuffer pushes reordered frames into the circular pre-buffer.
	ModePreBuffer
	// ModeLive invokes the subscribed sink per reordered frame.
	ModeLive
)

// Sink consumes one reordered media frame.
type Sink func(payload []byte)

// Receiver listens for RTP on a bound UDP port, reorders packets through the
// jitter buffer at the 20 ms frame cadence, and presents payloads either into
// the pre-buffer or to the live sink. Owned by a single call session.
type Receiver struct {
	logger commons.Logger
	conn   *net.UDPConn
	addr   *net.UDPAddr

	mu   sync.Mutex
	mode Mode
	jb   *jitterBuffer
	ring *preBuffer
	sink Sink

	ticker    *time.Ticker
	tickStop  chan struct{}
	tickOnce  sync.Once
	closeOnce sync.Once
	closed    bool

	errs chan error
}

// Listen binds a UDP socket on the first free port at or above startPort,
// probing sequentially upward. It fails once the candidate range is
// exhausted.
func Listen(logger commons.Logger, ip string, startPort int) (*Receiver, error) {
	var lastErr error
	for port := startPort; port < startPort+maxPortProbes; port++ {
		addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		r := &Receiver{
			logger:   logger,
			conn:     conn,
			addr:     conn.LocalAddr().(*net.UDPAddr),
			jb:       newJitterBuffer(),
			tickStop: make(chan struct{}),
			errs:     make(chan error, 1),
		}
		if port != startPort {
			logger.Debugw("rtp port probe moved up", "requested", startPort, "bound", r.addr.Port)
		}
		go r.readLoop()
		return r, nil
	}
	return nil, fmt.Errorf("no free rtp port in [%d,%d): %w", startPort, startPort+maxPortProbes, lastErr)
}

// LocalAddr returns the actually bound UDP endpoint.
func (r *Receiver) LocalAddr() *net.UDPAddr {
	return r.addr
}

// Errors surfaces socket failures. The receiver closes itself after the
// first error; the owner finalizes the call.
func (r *Receiver) Errors() <-chan error {
	return r.errs
}

// StartPreBuffering enters prebuffer mode with the given ring capacity in
// frames. New frames append to the ring, evicting the oldest when full.
func (r *Receiver) StartPreBuffering(capacityFrames int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = newPreBuffer(capacityFrames)
	r.mode = ModePreBuffer
}

// StopPreBufferingAndFlush concatenates the pre-buffered payloads in arrival
// order, clears the ring, and transitions the receiver to live mode. Frames
// reordered after this call go to the live sink, strictly after the returned
// bytes.
func (r *Receiver) StopPreBufferingAndFlush() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flushed []byte
	if r.ring != nil {
		flushed = r.ring.Flush()
	}
	r.mode = ModeLive
	return flushed
}

// SubscribeLive registers the sink invoked per reordered frame once the
// receiver is in live mode.
func (r *Receiver) SubscribeLive(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Close stops the playback timer and closes the socket. Idempotent.
func (r *Receiver) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.tickStop)
		r.conn.Close()
	})
}

func (r *Receiver) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				select {
				case r.errs <- err:
				default:
				}
				r.Close()
			}
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			r.logger.Warnw("dropping malformed rtp packet", "bytes", n, "error", err)
			continue
		}

		payload := make([]byte, len(pkt.Payload))
		copy(payload, pkt.Payload)

		r.mu.Lock()
		r.jb.Insert(pkt.SequenceNumber, payload)
		r.mu.Unlock()

		// The playback timer starts on the first arrival.
		r.tickOnce.Do(r.startPlayback)
	}
}

func (r *Receiver) startPlayback() {
	r.ticker = time.NewTicker(internal_audio.FrameDurationMs * time.Millisecond)
	go func() {
		for {
			select {
			case <-r.tickStop:
				r.ticker.Stop()
				return
			case <-r.ticker.C:
				r.tick()
			}
		}
	}()
}

func (r *Receiver) tick() {
	r.mu.Lock()
	payload, skipped, ok := r.jb.Tick()
	if !ok {
		r.mu.Unlock()
		return
	}
	if skipped > 0 {
		r.logger.Warnw("rtp loss threshold exceeded, skipping ahead",
			"skipped_frames", skipped, "resumed_seq", r.jb.lastPlayed)
	}

	mode := r.mode
	sink := r.sink
	if mode == ModePreBuffer {
		r.ring.Append(payload)
	}
	r.mu.Unlock()

	if mode == ModeLive && sink != nil {
		sink(payload)
	}
}
