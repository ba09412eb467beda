package stream

import (
	"net"
	"sync"
)

// Cipher 定义了就地加解密的钩子接口
// 要求实现不改变 payload 长度，且按流顺序维护自身状态
type Cipher interface {
	EncryptInPlace(p []byte)
	DecryptInPlace(p []byte)
}

// Ciphered 在 Base 工厂之下插入一层就地加解密。
// 读写两个方向各自调用一次 NewCipher，互不共享状态。
type Ciphered struct {
	Base      Factory // nil 表示 Plain{}
	NewCipher func() Cipher
}

func (f Ciphered) base() Factory {
	if f.Base == nil {
		return Plain{}
	}
	return f.Base
}

func (f Ciphered) NewReader(c net.Conn) (LineReader, error) {
	if f.NewCipher == nil {
		return f.base().NewReader(c)
	}
	return f.base().NewReader(&cipherConn{Conn: c, cipher: f.NewCipher()})
}

func (f Ciphered) NewWriter(c net.Conn) (LineWriter, error) {
	if f.NewCipher == nil {
		return f.base().NewWriter(c)
	}
	return f.base().NewWriter(&cipherConn{Conn: c, cipher: f.NewCipher()})
}

// cipherConn 只在一个方向上使用：Read 解密，Write 加密
type cipherConn struct {
	net.Conn
	cipher Cipher
	mu     sync.Mutex
	wbuf   []byte
}

func (c *cipherConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.cipher.DecryptInPlace(p[:n])
	}
	return n, err
}

func (c *cipherConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 不修改调用方的切片
	c.wbuf = append(c.wbuf[:0], p...)
	c.cipher.EncryptInPlace(c.wbuf)
	return c.Conn.Write(c.wbuf)
}
