package stream

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1))
		return enc
	}}
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}}
)

func getEncoder(w io.Writer) *zstd.Encoder {
	e := encoderPool.Get().(*zstd.Encoder)
	e.Reset(w)
	return e
}

func putEncoder(e *zstd.Encoder) {
	e.Reset(nil)
	encoderPool.Put(e)
}

func getDecoder(r io.Reader) (*zstd.Decoder, error) {
	d := decoderPool.Get().(*zstd.Decoder)
	if err := d.Reset(r); err != nil {
		decoderPool.Put(d)
		return nil, err
	}
	return d, nil
}

func putDecoder(d *zstd.Decoder) {
	_ = d.Reset(nil)
	decoderPool.Put(d)
}
