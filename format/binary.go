package format

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	settings "github.com/goliatone/go-settings"
)

// Binary layout: 4-byte magic, format version, flags, a BLAKE3 digest of
// the payload as stored, then the payload. The payload is the snapshot in
// deterministic CBOR, zstd-compressed when that actually saves space. The
// digest covers the stored bytes so corruption is caught before any
// decompression.
const (
	binaryMagic   = "GSET"
	binaryVersion = 1

	flagZstd byte = 1 << 0

	binaryHeaderLen = 4 + 1 + 1 + 32
)

// Deterministic encoding: same snapshot, same bytes. String-keyed maps on
// any-typed decode targets keep payloads compatible with encoding/json
// consumers.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("format: cbor decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("format: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("format: zstd decoder initialization failed: " + err.Error())
	}
}

// NewBinaryCodec returns the compact checksummed snapshot codec. Use it
// for large trees or flush-heavy hosts where the textual format's size
// and parse cost start to matter.
func NewBinaryCodec() settings.SnapshotCodec {
	return binaryCodec{}
}

type binaryCodec struct{}

func (binaryCodec) Encode(snap settings.Snapshot) ([]byte, error) {
	payload, err := encMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("format: encoding snapshot: %w", err)
	}

	var flags byte
	if compressed := zstdEncoder.EncodeAll(payload, nil); len(compressed) < len(payload) {
		payload = compressed
		flags |= flagZstd
	}
	sum := blake3.Sum256(payload)

	out := make([]byte, 0, binaryHeaderLen+len(payload))
	out = append(out, binaryMagic...)
	out = append(out, binaryVersion, flags)
	out = append(out, sum[:]...)
	out = append(out, payload...)
	return out, nil
}

func (binaryCodec) Decode(data []byte) (settings.Snapshot, error) {
	if len(data) == 0 {
		return settings.Snapshot{}, nil
	}
	if len(data) < binaryHeaderLen {
		return settings.Snapshot{}, fmt.Errorf("%w: binary snapshot truncated at %d bytes", settings.ErrCorruptStore, len(data))
	}
	if !bytes.Equal(data[:4], []byte(binaryMagic)) {
		return settings.Snapshot{}, fmt.Errorf("%w: bad magic %q", settings.ErrCorruptStore, data[:4])
	}
	version, flags := data[4], data[5]
	if version != binaryVersion {
		return settings.Snapshot{}, fmt.Errorf("%w: unsupported binary version %d", settings.ErrCorruptStore, version)
	}
	if flags&^flagZstd != 0 {
		return settings.Snapshot{}, fmt.Errorf("%w: unsupported flags %#x", settings.ErrCorruptStore, flags)
	}

	var sum [32]byte
	copy(sum[:], data[6:6+32])
	payload := data[binaryHeaderLen:]
	if blake3.Sum256(payload) != sum {
		return settings.Snapshot{}, fmt.Errorf("%w: checksum mismatch", settings.ErrCorruptStore)
	}

	if flags&flagZstd != 0 {
		decompressed, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return settings.Snapshot{}, fmt.Errorf("%w: zstd: %v", settings.ErrCorruptStore, err)
		}
		payload = decompressed
	}

	var snap settings.Snapshot
	if err := decMode.Unmarshal(payload, &snap); err != nil {
		return settings.Snapshot{}, fmt.Errorf("%w: cbor: %v", settings.ErrCorruptStore, err)
	}
	return snap, nil
}
