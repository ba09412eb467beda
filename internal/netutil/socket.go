//go:build unix

package netutil

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

func SetReusePort(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolInt(enable))
}

func SetReuseAddr(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(enable))
}

func SetNoDelay(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(enable))
}

func SetRecvBuf(fd int, n int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, n)
}

func SetSendBuf(fd int, n int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, n)
}

// Tune 对已接受的 TCP 连接设置 TCP_NODELAY 与收发缓冲。
// 非 TCP 连接（如 wsnet、net.Pipe）直接跳过。
func Tune(c net.Conn, noDelay bool, recvBuf, sendBuf int) error {
	return Control(c, func(fd int) error {
		if err := SetNoDelay(fd, noDelay); err != nil {
			return err
		}
		if recvBuf > 0 {
			if err := SetRecvBuf(fd, recvBuf); err != nil {
				return err
			}
		}
		if sendBuf > 0 {
			if err := SetSendBuf(fd, sendBuf); err != nil {
				return err
			}
		}
		return nil
	})
}

// Control 从 net.Conn 中抽取 fd 并执行 fn；不支持 SyscallConn 的连接返回 nil。
func Control(c net.Conn, fn func(fd int) error) error {
	sc, ok := c.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var ctlErr error
	if err := rc.Control(func(rawfd uintptr) {
		ctlErr = fn(int(rawfd))
	}); err != nil {
		return err
	}
	return ctlErr
}

// IsPeerReset 判断是否为对端复位/断开导致的错误。
func IsPeerReset(err error) bool {
	return errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ECONNABORTED)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
