package interviewclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("connection closed")

// Conn 인터뷰 서버와의 WebSocket 연결. 받은 이벤트를 Machine에 반영한다
type Conn struct {
	ws      *websocket.Conn
	machine *Machine
	logger  *zap.Logger

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once

	// Updates 상태가 바뀔 수 있는 프레임을 반영할 때마다 신호 (가득 차면 건너뜀)
	Updates chan protocol.Type
}

// Dial 서버에 연결하고 수신 루프를 시작한다. token이 있으면 Bearer 헤더로 보낸다
func Dial(ctx context.Context, url, token string, machine *Machine, logger *zap.Logger) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Conn{
		ws:      ws,
		machine: machine,
		logger:  logger,
		done:    make(chan struct{}),
		Updates: make(chan protocol.Type, 64),
	}
	go c.readLoop()

	return c, nil
}

func (c *Conn) Machine() *Machine {
	return c.machine
}

// Done 수신 루프가 끝나면 닫힌다
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readLoop() {
	defer func() {
		c.machine.HandleTransportLost()
		c.close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Interview connection closed", zap.Error(err))
			}
			return
		}
		reply, err := c.machine.Apply(data)
		if err != nil {
			c.logger.Warn("Dropping malformed server frame", zap.Error(err))
			continue
		}
		if reply != nil {
			if err := c.Send(reply); err != nil {
				c.logger.Warn("Failed to send state correction",
					zap.String("type", string(reply.Type())),
					zap.Error(err))
			}
		}

		var env struct {
			Type protocol.Type `json:"type"`
		}
		if json.Unmarshal(data, &env) == nil {
			select {
			case c.Updates <- env.Type:
			default:
			}
		}
	}
}

// Send 이벤트 전송
func (c *Conn) Send(ev protocol.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Conn) Join() error {
	return c.Send(c.machine.Join())
}

func (c *Conn) FindMatch() error {
	ev, err := c.machine.FindMatch()
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) CancelSearch() error {
	ev, err := c.machine.CancelSearch()
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) EndCall() error {
	ev, err := c.machine.EndCall()
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) SwapRoles() error {
	ev, err := c.machine.RequestSwap()
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) EditCode(code string) error {
	ev, err := c.machine.EditCode(code)
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) SendMessage(text string) error {
	ev, err := c.machine.SendMessage(text)
	if err != nil {
		return err
	}
	return c.Send(ev)
}

func (c *Conn) StartRound(problem json.RawMessage) error {
	ev, err := c.machine.StartRound(problem)
	if err != nil {
		return err
	}
	return c.Send(ev)
}

// Close 정상 종료 프레임을 보내고 연결을 닫는다
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	c.close()
	return nil
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
