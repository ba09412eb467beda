package serialsoc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"

	"github.com/legamerdc/serialsoc/internal/netutil"
)

var (
	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("serialsoc: invalid argument")

	// ErrServerStarted Run 只能调用一次
	ErrServerStarted = errors.New("serialsoc: server already started")
)

// PanicError 包装任务或回调中 recover 到的 panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("serialsoc: panic: %v", e.Value) }

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// call 执行 t，panic 转为 *PanicError
func call(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t()
}

// isExpectedClose 连接被本端关闭或被对端断开，属于正常结束
func isExpectedClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		netutil.IsPeerReset(err)
}
