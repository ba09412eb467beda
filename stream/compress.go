package stream

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compressed 在连接上使用 zstd 流压缩，每次 Flush 输出一个完整块，
// 对端可立即解出已发送的行。编解码器来自进程级池，连接断开后归还。
type Compressed struct {
	MaxLine     int
	WriteBuffer int
}

func (z Compressed) NewReader(c net.Conn) (LineReader, error) {
	dec, err := getDecoder(c)
	if err != nil {
		return nil, err
	}
	return &zstdReader{LineReader: NewLineReader(dec, z.MaxLine), dec: dec}, nil
}

func (z Compressed) NewWriter(c net.Conn) (LineWriter, error) {
	enc := getEncoder(c)
	n := z.WriteBuffer
	if n <= 0 {
		n = defaultWriteBuffer
	}
	return &zstdWriter{bw: bufio.NewWriterSize(enc, n), enc: enc}, nil
}

type zstdReader struct {
	LineReader
	dec  *zstd.Decoder
	once sync.Once
}

// ReadLine 对端未写帧尾就断开时按流结束处理
func (r *zstdReader) ReadLine() (string, error) {
	line, err := r.LineReader.ReadLine()
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return line, err
}

func (r *zstdReader) Close() error {
	r.once.Do(func() { putDecoder(r.dec) })
	return nil
}

type zstdWriter struct {
	bw  *bufio.Writer
	enc *zstd.Encoder
}

func (w *zstdWriter) WriteString(s string) (int, error) { return w.bw.WriteString(s) }

func (w *zstdWriter) Flush() error {
	if w.enc == nil {
		return io.ErrClosedPipe
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Close 写出帧尾并归还编码器；底层连接可能已关闭，错误仅返回不重试。
func (w *zstdWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	enc := w.enc
	w.enc = nil
	w.bw.Reset(closedWriter{})
	err := enc.Close()
	putEncoder(enc)
	return err
}
