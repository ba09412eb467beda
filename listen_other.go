//go:build !unix

package serialsoc

import "syscall"

// listenControl 非 unix 平台不设置套接字选项
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	_ = reusePort
	return nil
}
