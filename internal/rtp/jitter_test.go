// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_rtp

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func frame(seq uint16) []byte {
	return []byte(fmt.Sprintf("frame-%d", seq))
}

// drain ticks until the buffer stops producing, returning delivered payloads.
func drain(j *jitterBuffer) [][]byte {
	var out [][]byte
	idle := 0
	for idle <= MaxMisses+1 {
		p, _, ok := j.Tick()
		if ok {
			out = append(out, p)
			idle = 0
			continue
		}
		idle++
		if j.Len() == 0 {
			break
		}
	}
	return out
}

func TestJitterBuffer_InOrderDelivery(t *testing.T) {
	j := newJitterBuffer()
	for seq := uint16(100); seq < 110; seq++ {
		j.Insert(seq, frame(seq))
	}
	got := drain(j)
	require.Len(t, got, 10)
	for i, p := range got {
		assert.Equal(t, frame(uint16(100+i)), p)
	}
}

func TestJitterBuffer_ReordersOutOfOrderArrival(t *testing.T) {
	j := newJitterBuffer()
	j.Insert(5, frame(5))
	j.Insert(7, frame(7))
	j.Insert(6, frame(6))
	got := drain(j)
	require.Len(t, got, 3)
	assert.Equal(t, frame(5), got[0])
	assert.Equal(t, frame(6), got[1])
	assert.Equal(t, frame(7), got[2])
}

func TestJitterBuffer_SkipAfterMaxMisses(t *testing.T) {
	// S5: sequences 100,101 then a 5-packet gap, then 107,108.
	j := newJitterBuffer()
	for _, seq := range []uint16{100, 101, 107, 108} {
		j.Insert(seq, frame(seq))
	}

	p, _, ok := j.Tick()
	require.True(t, ok)
	assert.Equal(t, frame(100), p)
	p, _, ok = j.Tick()
	require.True(t, ok)
	assert.Equal(t, frame(101), p)

	// 102 is missing: exactly MaxMisses empty ticks, then the skip delivers 107.
	for i := 0; i < MaxMisses; i++ {
		_, _, ok = j.Tick()
		assert.False(t, ok, "tick %d should miss", i)
	}
	p, skipped, ok := j.Tick()
	require.True(t, ok)
	assert.Equal(t, frame(107), p)
	assert.Equal(t, 5, skipped)

	p, skipped, ok = j.Tick()
	require.True(t, ok)
	assert.Equal(t, frame(108), p)
	assert.Zero(t, skipped)
}

func TestJitterBuffer_SequenceWrapAround(t *testing.T) {
	j := newJitterBuffer()
	for _, seq := range []uint16{65534, 65535, 0, 1} {
		j.Insert(seq, frame(seq))
	}
	got := drain(j)
	require.Len(t, got, 4)
	assert.Equal(t, frame(65534), got[0])
	assert.Equal(t, frame(65535), got[1])
	assert.Equal(t, frame(0), got[2])
	assert.Equal(t, frame(1), got[3])
}

func TestJitterBuffer_EmptyTickIsNoOp(t *testing.T) {
	j := newJitterBuffer()
	_, _, ok := j.Tick()
	assert.False(t, ok)

	j.Insert(10, frame(10))
	_, _, ok = j.Tick()
	assert.True(t, ok)

	// Drained again: miss counter must not run while the buffer is empty.
	for i := 0; i < MaxMisses*3; i++ {
		_, _, ok = j.Tick()
		assert.False(t, ok)
	}
	j.Insert(11, frame(11))
	p, skipped, ok := j.Tick()
	require.True(t, ok)
	assert.Zero(t, skipped)
	assert.Equal(t, frame(11), p)
}

// Property 1: with injected loss, delivery is in strictly increasing modular
// order with at most one gap per lost packet.
func TestJitterBuffer_LossyStreamStaysOrdered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := uint16(rapid.IntRange(0, 65535).Draw(t, "start"))
		length := rapid.IntRange(20, 200).Draw(t, "length")
		lossPct := rapid.IntRange(0, 10).Draw(t, "lossPct")

		rng := rand.New(rand.NewSource(int64(rapid.Int64().Draw(t, "seed"))))

		j := newJitterBuffer()
		sent := 0
		for i := 0; i < length; i++ {
			seq := start + uint16(i)
			if rng.Intn(100) < lossPct && i != 0 {
				continue
			}
			j.Insert(seq, frame(seq))
			sent++
		}

		var seqs []uint16
		idle := 0
		for j.Len() > 0 && idle < 1000 {
			p, _, ok := j.Tick()
			if !ok {
				idle++
				continue
			}
			idle = 0
			var s uint16
			fmt.Sscanf(string(p), "frame-%d", &s)
			seqs = append(seqs, s)
		}

		if len(seqs) != sent {
			t.Fatalf("delivered %d of %d buffered frames", len(seqs), sent)
		}
		for i := 1; i < len(seqs); i++ {
			dist := int(seqs[i] - seqs[i-1]) // modular forward distance
			if dist <= 0 || dist > 1<<15 {
				t.Fatalf("delivery not strictly increasing: %d after %d", seqs[i], seqs[i-1])
			}
		}
	})
}

// Property 2: for any capacity N and arrival sequence of length L >= N,
// Flush returns the last N payloads in arrival order.
func TestPreBuffer_KeepsLastNInArrivalOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 50).Draw(t, "capacity")
		total := rapid.IntRange(capacity, 300).Draw(t, "total")

		p := newPreBuffer(capacity)
		for i := 0; i < total; i++ {
			p.Append([]byte{byte(i), byte(i >> 8)})
		}

		flushed := p.Flush()
		if len(flushed) != capacity*2 {
			t.Fatalf("flushed %d bytes, want %d", len(flushed), capacity*2)
		}
		for i := 0; i < capacity; i++ {
			want := total - capacity + i
			got := int(flushed[i*2]) | int(flushed[i*2+1])<<8
			if got != want&0xffff {
				t.Fatalf("slot %d: got %d want %d", i, got, want&0xffff)
			}
		}
	})
}

func TestPreBuffer_FlushClears(t *testing.T) {
	p := newPreBuffer(4)
	p.Append([]byte{1})
	p.Append([]byte{2})
	assert.Equal(t, []byte{1, 2}, p.Flush())
	assert.Empty(t, p.Flush())
}

func TestPreBuffer_PartialFill(t *testing.T) {
	p := newPreBuffer(100)
	p.Append([]byte{9})
	assert.Equal(t, []byte{9}, p.Flush())
}
