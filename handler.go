package serialsoc

// ServerHandler 为服务端生命周期回调，全部在控制 goroutine 上调用。
type ServerHandler interface {
	// OnStart 在监听端点绑定后、其他任何事件之前调用一次
	OnStart(s *Server) error
	// OnException 对每个未捕获失败调用；它自身返回的错误只记日志
	OnException(s *Server, err error) error
	// OnClose 在关闭开始时调用一次，随后所有连接被关闭
	OnClose(s *Server) error
	// OnStop 在所有连接断开之后调用一次，是最后一个事件
	OnStop(s *Server) error
}

// Handler 为单条连接的回调，全部在控制 goroutine 上调用。
// 顺序为 OnConnect, Receive*, OnClose, OnDisconnect。
type Handler interface {
	OnConnect(c *Conn) error
	Receive(c *Conn, line string) error
	// OnClose 若由 Conn.Close 触发，连接此时仍可发送
	OnClose(c *Conn) error
	OnDisconnect(c *Conn) error
}

// NopServerHandler 所有回调均为空，可嵌入以只实现需要的方法
type NopServerHandler struct{}

func (NopServerHandler) OnStart(*Server) error            { return nil }
func (NopServerHandler) OnException(*Server, error) error { return nil }
func (NopServerHandler) OnClose(*Server) error            { return nil }
func (NopServerHandler) OnStop(*Server) error             { return nil }

// NopHandler 所有回调均为空
type NopHandler struct{}

func (NopHandler) OnConnect(*Conn) error       { return nil }
func (NopHandler) Receive(*Conn, string) error { return nil }
func (NopHandler) OnClose(*Conn) error         { return nil }
func (NopHandler) OnDisconnect(*Conn) error    { return nil }
