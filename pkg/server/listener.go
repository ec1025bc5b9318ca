package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/retroryan/easyracer/pkg/log"
	"github.com/retroryan/easyracer/pkg/semaphore"
)

// limitListener holds a semaphore slot for every open connection and stops
// accepting while all slots are taken.
type limitListener struct {
	net.Listener

	ctx    context.Context
	sem    *semaphore.ConnSemaphore
	logger *log.Logger
}

func newLimitListener(ctx context.Context, ln net.Listener, sem *semaphore.ConnSemaphore, logger *log.Logger) net.Listener {
	return &limitListener{Listener: ln, ctx: ctx, sem: sem, logger: logger}
}

func (l *limitListener) Accept() (net.Conn, error) {
	for {
		err := l.sem.Acquire(l.ctx)
		if err == nil {
			break
		}
		if errors.Is(err, semaphore.ErrTimeout) {
			l.logger.VerboseMsg("All %d connection slots busy: %v", l.sem.InUse(), err)
			continue
		}
		return nil, net.ErrClosed
	}

	conn, err := l.Listener.Accept()
	if err != nil {
		l.sem.Release()
		return nil, err
	}
	return &limitConn{Conn: conn, release: sync.OnceFunc(l.sem.Release)}, nil
}

type limitConn struct {
	net.Conn
	release func()
}

func (c *limitConn) Close() error {
	err := c.Conn.Close()
	c.release()
	return err
}
