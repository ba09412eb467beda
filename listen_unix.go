//go:build unix

package serialsoc

import (
	"syscall"

	"github.com/legamerdc/serialsoc/internal/netutil"
)

// listenControl 在 bind 之前设置 SO_REUSEADDR，可选 SO_REUSEPORT
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if opErr = netutil.SetReuseAddr(int(fd), true); opErr != nil {
				return
			}
			if reusePort {
				opErr = netutil.SetReusePort(int(fd), true)
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
