// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"ici/internal/coherence"
)

// FrameMagic identifies a coherence snapshot datagram ("ICI1").
const FrameMagic uint32 = 0x49434931

// Frame layout (big-endian):
//
//	magic        uint32
//	sequence     uint32
//	total_blocks uint64
//	current      float32
//	smoothed     float32
//	vector_len   uint16
//	vector       [vector_len]float32
//
// The matrix is deliberately not carried; UDP consumers are dashboards that
// plot the scalar feed and, at most, the per-channel vector.

// SnapshotTransport packs engine snapshots into binary frames and sends
// them through a Sender. It satisfies the telemetry Transport interface.
type SnapshotTransport struct {
	sender      *Sender
	sequenceNum uint32

	// Reusable buffers so per-frame packing does not allocate.
	packetBuffer *bytes.Buffer
	f32Buffer    []float32
}

// NewSnapshotTransport creates a transport over the given sender.
func NewSnapshotTransport(sender *Sender) (*SnapshotTransport, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp snapshot transport: sender cannot be nil")
	}
	return &SnapshotTransport{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send packs a coherence.Snapshot into a frame and transmits it. Data of
// any other type is rejected.
func (t *SnapshotTransport) Send(data any) error {
	snapshot, ok := data.(coherence.Snapshot)
	if !ok {
		return fmt.Errorf("udp snapshot transport: unsupported payload type %T", data)
	}

	frame, err := t.pack(snapshot)
	if err != nil {
		return err
	}
	return t.sender.Send(frame)
}

// pack serializes the snapshot into the reusable packet buffer and returns
// the framed bytes, valid until the next pack call.
func (t *SnapshotTransport) pack(s coherence.Snapshot) ([]byte, error) {
	t.sequenceNum++

	if cap(t.f32Buffer) < len(s.Vector) {
		t.f32Buffer = make([]float32, len(s.Vector))
	}
	t.f32Buffer = t.f32Buffer[:len(s.Vector)]
	for i, v := range s.Vector {
		t.f32Buffer[i] = float32(v)
	}

	t.packetBuffer.Reset()
	for _, field := range []any{
		FrameMagic,
		t.sequenceNum,
		s.Stats.TotalBlocks,
		float32(s.CurrentICI),
		float32(s.SmoothedICI),
		uint16(len(t.f32Buffer)),
		t.f32Buffer,
	} {
		if err := binary.Write(t.packetBuffer, binary.BigEndian, field); err != nil {
			return nil, fmt.Errorf("failed to pack snapshot frame: %w", err)
		}
	}
	return t.packetBuffer.Bytes(), nil
}

// Close closes the underlying sender.
func (t *SnapshotTransport) Close() error {
	return t.sender.Close()
}
