// Package stream 将原始连接适配为按行读写的流。
//
// 行结束符支持 "\n"、"\r" 与 "\r\n"，ReadLine 返回前去除。
package stream

import (
	"bufio"
	"io"
	"net"
)

const (
	DefaultMaxLine     = 64 << 10 // 64 KiB
	defaultWriteBuffer = 4 << 10
)

// ErrLineTooLong 单行超过 MaxLine
var ErrLineTooLong = bufio.ErrTooLong

// LineReader 逐行读取。流结束返回 io.EOF。
type LineReader interface {
	ReadLine() (string, error)
}

// LineWriter 缓冲写入，Flush 后数据才保证发出。
// *bufio.Writer 即满足该接口。
type LineWriter interface {
	WriteString(s string) (int, error)
	Flush() error
}

// Factory 为每条连接构造读写端。
// 若返回值实现 io.Closer，连接断开后会被关闭以释放资源。
type Factory interface {
	NewReader(c net.Conn) (LineReader, error)
	NewWriter(c net.Conn) (LineWriter, error)
}

// Plain 是默认工厂：直接在连接上做缓冲读写。
type Plain struct {
	MaxLine     int // 0 表示 DefaultMaxLine
	WriteBuffer int
}

func (p Plain) NewReader(c net.Conn) (LineReader, error) {
	return NewLineReader(c, p.MaxLine), nil
}

func (p Plain) NewWriter(c net.Conn) (LineWriter, error) {
	n := p.WriteBuffer
	if n <= 0 {
		n = defaultWriteBuffer
	}
	return bufio.NewWriterSize(c, n), nil
}

type lineReader struct {
	sc     *bufio.Scanner
	skipLF bool
}

// NewLineReader 在 r 上构造行读取器，maxLine<=0 时使用 DefaultMaxLine。
func NewLineReader(r io.Reader, maxLine int) LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	lr := &lineReader{sc: bufio.NewScanner(r)}
	initial := 4 << 10
	if initial > maxLine {
		initial = maxLine
	}
	lr.sc.Buffer(make([]byte, 0, initial), maxLine)
	lr.sc.Split(lr.split)
	return lr
}

func (r *lineReader) ReadLine() (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// split 遇到 '\r' 立即交付该行，下一次再吞掉紧随的 '\n'，
// 交互式对端只发 "\r" 时不会被阻塞。
func (r *lineReader) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if r.skipLF && len(data) > 0 {
		r.skipLF = false
		if data[0] == '\n' {
			return 1, nil, nil
		}
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			r.skipLF = true
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type closedWriter struct{}

func (closedWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
