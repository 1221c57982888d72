package network

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type conn struct {
	peer    string
	raw     net.Conn
	send    chan []byte
	closed  atomic.Bool
	active  atomic.Bool
	limiter *rate.Limiter
}

func newConn(peer string, raw net.Conn, cfg Config) *conn {
	c := &conn{
		peer: peer,
		raw:  raw,
		send: make(chan []byte, cfg.SendBuffer),
	}
	if cfg.ReadRate > 0 {
		burst := max(cfg.ReadBuffer, int(cfg.ReadRate))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.ReadRate), burst)
	}
	return c
}

func (c *conn) write(b []byte) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrBufferFull
	}
}

// serve runs the read and write loops until either fails or ctx ends.
func (t *Transport) serve(ctx context.Context, c *conn) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return t.readLoop(gctx, c)
	})
	group.Go(func() error {
		return t.writeLoop(gctx, c)
	})
	group.Go(func() error {
		<-gctx.Done()
		c.closed.Store(true)
		c.raw.Close()
		return nil
	})
	return group.Wait()
}

func (t *Transport) readLoop(ctx context.Context, c *conn) error {
	buf := make([]byte, t.cfg.ReadBuffer)
	for {
		n, err := c.raw.Read(buf)
		if n > 0 {
			c.active.Store(true)
			if c.limiter != nil {
				if werr := c.limiter.WaitN(ctx, n); werr != nil {
					return werr
				}
			}
			ev := Event{Kind: Message, Peer: c.peer, Data: bytes.Clone(buf[:n])}
			if herr := t.emit(ev); herr != nil {
				return herr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context, c *conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.send:
			_ = c.raw.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if _, err := c.raw.Write(data); err != nil {
				if errors.Is(err, net.ErrClosed) && ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
	}
}
