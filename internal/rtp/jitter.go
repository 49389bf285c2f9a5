// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtp

// MaxMisses is the number of consecutive empty 20 ms ticks tolerated before
// the buffer skips forward to the nearest buffered sequence.
const MaxMisses = 5

// jitterBuffer reorders RTP payloads by 16-bit sequence number. The sequence
// space is circular; "next" is always (lastPlayed+1) mod 65536. Not safe for
// concurrent use; the receiver serializes access.
type jitterBuffer struct {
	payloads   map[uint16][]byte
	lastPlayed uint16
	started    bool
	missCount  int
}

func newJitterBuffer() *jitterBuffer {
	return &jitterBuffer{payloads: make(map[uint16][]byte)}
}

// Insert stores a payload under its sequence number. The first insert anchors
// playback just before the smallest buffered sequence.
func (j *jitterBuffer) Insert(seq uint16, payload []byte) {
	j.payloads[seq] = payload
	if !j.started {
		j.lastPlayed = j.minKey() - 1
		j.started = true
	}
}

// Len reports the number of buffered payloads.
func (j *jitterBuffer) Len() int {
	return len(j.payloads)
}

// Tick advances playback by one frame interval. It returns the next in-order
// payload when present. After MaxMisses consecutive empty ticks it skips to
// the buffered sequence with the smallest forward modular distance and
// delivers it; skipped reports that a gap was crossed. An empty buffer is a
// no-op.
func (j *jitterBuffer) Tick() (payload []byte, skipped int, ok bool) {
	if !j.started || len(j.payloads) == 0 {
		return nil, 0, false
	}

	next := j.lastPlayed + 1
	if p, present := j.payloads[next]; present {
		delete(j.payloads, next)
		j.lastPlayed = next
		j.missCount = 0
		return p, 0, true
	}

	j.missCount++
	if j.missCount <= MaxMisses {
		return nil, 0, false
	}

	// Loss threshold exceeded: jump to the nearest sequence ahead of next.
	nearest := j.nearestForward(next)
	skipped = int(nearest - next)
	p := j.payloads[nearest]
	delete(j.payloads, nearest)
	j.lastPlayed = nearest
	j.missCount = 0
	return p, skipped, true
}

func (j *jitterBuffer) minKey() uint16 {
	first := true
	var min uint16
	for k := range j.payloads {
		if first || k < min {
			min = k
			first = false
		}
	}
	return min
}

// nearestForward returns the buffered key with the smallest forward modular
// distance from the given sequence, treating the u16 space as circular.
func (j *jitterBuffer) nearestForward(from uint16) uint16 {
	var best uint16
	bestDist := -1
	for k := range j.payloads {
		dist := int(k - from) // u16 arithmetic wraps, then widen
		if dist < 0 {
			dist += 1 << 16
		}
		if bestDist == -1 || dist < bestDist {
			best = k
			bestDist = dist
		}
	}
	return best
}

// preBuffer is the circular buffer that retains audio frames leading up to a
// voice-start decision. When full, the oldest frame is evicted.
type preBuffer struct {
	frames   [][]byte
	capacity int
	start    int
	count    int
}

func newPreBuffer(capacity int) *preBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &preBuffer{
		frames:   make([][]byte, capacity),
		capacity: capacity,
	}
}

// Append adds a frame, evicting the oldest when the ring is full.
func (p *preBuffer) Append(frame []byte) {
	idx := (p.start + p.count) % p.capacity
	if p.count == p.capacity {
		p.frames[p.start] = frame
		p.start = (p.start + 1) % p.capacity
		return
	}
	p.frames[idx] = frame
	p.count++
}

// Flush concatenates the retained frames in arrival order and clears the ring.
func (p *preBuffer) Flush() []byte {
	total := 0
	for i := 0; i < p.count; i++ {
		total += len(p.frames[(p.start+i)%p.capacity])
	}
	out := make([]byte, 0, total)
	for i := 0; i < p.count; i++ {
		out = append(out, p.frames[(p.start+i)%p.capacity]...)
	}
	p.start = 0
	p.count = 0
	return out
}
