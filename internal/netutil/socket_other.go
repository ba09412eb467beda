//go:build !unix

package netutil

import (
	"errors"
	"net"
	"syscall"
)

// Tune 非 unix 平台不调整套接字选项。
func Tune(c net.Conn, noDelay bool, recvBuf, sendBuf int) error {
	if tc, ok := c.(*net.TCPConn); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}

func IsPeerReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED)
}
