// Package proto implements the wire protocol shared by the recorder and
// analyzer processes: a fixed frame-message header, a metadata-message
// layout, and the CRC-32 framing that protects both.
//
// Field order and the CRC construction (polynomial 0xEDB88320, initial
// 0xFFFFFFFF, final XOR 0xFFFFFFFF — the standard IEEE CRC-32, computed here
// with the stdlib hash/crc32 table rather than a hand-rolled loop) are
// grounded on Protocol.cpp's serializeFrameMessage/serializeKeyFrameMetaDataMessage.
package proto

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/five82/keyscope/internal/errors"
)

func floatBits(f float32) uint32 { return math.Float32bits(f) }
func bitsFloat(b uint32) float32 { return math.Float32frombits(b) }

// Magic is the constant magic number stamped on every message.
const Magic uint32 = 0x4B465630 // "KFV0"

// Version is the wire protocol version this package implements.
const Version uint8 = 1

// Message types.
const (
	MessageTypeFrame    uint8 = 1
	MessageTypeMetadata uint8 = 2
)

// frameHeaderSize is the byte length of the fixed frame header, before the
// pixel payload and trailing CRC.
const frameHeaderSize = 4 + 1 + 1 + 4 + 8 + 4 + 4 + 1 + 4 // 31 bytes

// metadataMessageSize is the byte length of a metadata message including its
// trailing CRC (it carries no variable-length payload).
const metadataMessageSize = 4 + 1 + 1 + 4 + 8 + 4 + 4 + 4 + 4 + 1 + 4 // 39 bytes

// FrameMessage is a decoded frame descriptor plus its pixel payload.
type FrameMessage struct {
	FrameID     uint32
	TimestampMs uint64
	Width       uint32
	Height      uint32
	Channels    uint8
	Pixels      []byte
}

// MetadataMessage is a decoded keyframe metadata record.
type MetadataMessage struct {
	FrameID       uint32
	TimestampMs   uint64
	FinalScore    float32
	SceneScore    float32
	MotionScore   float32
	TextScore     float32
	IsSceneChange bool
}

func crc(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// SerializeFrameMessage encodes a frame message: header, pixel payload, then
// a 4-byte CRC-32 computed over header bytes followed by pixel bytes.
func SerializeFrameMessage(m FrameMessage) []byte {
	dataSize := uint32(len(m.Pixels))
	buf := make([]byte, frameHeaderSize+len(m.Pixels)+4)

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], Magic)
	off += 4
	buf[off] = Version
	off++
	buf[off] = MessageTypeFrame
	off++
	binary.LittleEndian.PutUint32(buf[off:], m.FrameID)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], m.TimestampMs)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], m.Width)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.Height)
	off += 4
	buf[off] = m.Channels
	off++
	binary.LittleEndian.PutUint32(buf[off:], dataSize)
	off += 4

	copy(buf[off:], m.Pixels)
	off += len(m.Pixels)

	sum := crc(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], sum)

	return buf
}

// DeserializeFrameMessage decodes and verifies a frame message. It rejects
// truncated input before trusting data_size, then verifies magic and CRC —
// CRC covers header bytes and payload bytes, so a truncated payload must be
// caught first (§9 design note on CRC verification order).
func DeserializeFrameMessage(data []byte) (FrameMessage, error) {
	if len(data) < frameHeaderSize+4 {
		return FrameMessage{}, errors.NewProtocolError(errors.KindTruncated, "frame message shorter than header+crc")
	}

	off := 0
	magic := binary.LittleEndian.Uint32(data[off:])
	off += 4
	_ = data[off] // version, not currently validated beyond presence
	off++
	off++ // message_type
	frameID := binary.LittleEndian.Uint32(data[off:])
	off += 4
	timestampMs := binary.LittleEndian.Uint64(data[off:])
	off += 8
	width := binary.LittleEndian.Uint32(data[off:])
	off += 4
	height := binary.LittleEndian.Uint32(data[off:])
	off += 4
	channels := data[off]
	off++
	dataSize := binary.LittleEndian.Uint32(data[off:])
	off += 4

	if magic != Magic {
		return FrameMessage{}, errors.NewProtocolError(errors.KindBadMagic, "frame message has wrong magic number")
	}

	want := frameHeaderSize + int(dataSize) + 4
	if len(data) < want {
		return FrameMessage{}, errors.NewProtocolError(errors.KindTruncated, "frame message payload shorter than data_size")
	}

	payloadEnd := off + int(dataSize)
	sum := crc(data[:payloadEnd])
	got := binary.LittleEndian.Uint32(data[payloadEnd:])
	if sum != got {
		return FrameMessage{}, errors.NewProtocolError(errors.KindBadCRC, "frame message failed CRC verification")
	}

	pixels := make([]byte, dataSize)
	copy(pixels, data[off:payloadEnd])

	return FrameMessage{
		FrameID:     frameID,
		TimestampMs: timestampMs,
		Width:       width,
		Height:      height,
		Channels:    channels,
		Pixels:      pixels,
	}, nil
}

// SerializeMetadataMessage encodes a keyframe metadata message: header
// fields, score fields, scene-change flag, then a CRC-32 over all preceding
// bytes.
func SerializeMetadataMessage(m MetadataMessage) []byte {
	buf := make([]byte, metadataMessageSize)

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], Magic)
	off += 4
	buf[off] = Version
	off++
	buf[off] = MessageTypeMetadata
	off++
	binary.LittleEndian.PutUint32(buf[off:], m.FrameID)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], m.TimestampMs)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], floatBits(m.FinalScore))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], floatBits(m.SceneScore))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], floatBits(m.MotionScore))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], floatBits(m.TextScore))
	off += 4
	if m.IsSceneChange {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	off++

	sum := crc(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], sum)

	return buf
}

// DeserializeMetadataMessage decodes and verifies a metadata message.
func DeserializeMetadataMessage(data []byte) (MetadataMessage, error) {
	if len(data) < metadataMessageSize {
		return MetadataMessage{}, errors.NewProtocolError(errors.KindTruncated, "metadata message shorter than fixed size")
	}

	off := 0
	magic := binary.LittleEndian.Uint32(data[off:])
	off += 4
	off++ // version
	off++ // message_type
	frameID := binary.LittleEndian.Uint32(data[off:])
	off += 4
	timestampMs := binary.LittleEndian.Uint64(data[off:])
	off += 8
	finalScore := bitsFloat(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	sceneScore := bitsFloat(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	motionScore := bitsFloat(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	textScore := bitsFloat(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	isSceneChange := data[off] != 0
	off++

	if magic != Magic {
		return MetadataMessage{}, errors.NewProtocolError(errors.KindBadMagic, "metadata message has wrong magic number")
	}

	sum := crc(data[:off])
	got := binary.LittleEndian.Uint32(data[off:])
	if sum != got {
		return MetadataMessage{}, errors.NewProtocolError(errors.KindBadCRC, "metadata message failed CRC verification")
	}

	return MetadataMessage{
		FrameID:       frameID,
		TimestampMs:   timestampMs,
		FinalScore:    finalScore,
		SceneScore:    sceneScore,
		MotionScore:   motionScore,
		TextScore:     textScore,
		IsSceneChange: isSceneChange,
	}, nil
}
