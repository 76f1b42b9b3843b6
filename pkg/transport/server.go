// Package transport moves bytes between TCP connections and channels.
package transport

import (
	"context"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/panjf2000/ants"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/nm-morais/go-frames/pkg/channel"
	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/logs"
)

const serverCaller = "server"

const (
	DefaultWorkers        = 64
	DefaultReadBufferSize = 4096
)

type ServerConfig struct {
	ListenAddr string
	// 0 means unlimited
	MaxConnections int
	// connections served at once; each one holds a worker until it closes
	Workers        int
	ReadBufferSize int
	// 0 disables the idle read deadline
	ReadTimeout time.Duration
	Channel     channel.Config
}

// Initializer registers the stages of a freshly accepted connection.
type Initializer func(ch *channel.Channel) error

type Server struct {
	conf     ServerConfig
	init     Initializer
	pool     *ants.Pool
	listener net.Listener
	channels sync.Map
	wg       sync.WaitGroup

	// orders wg.Add in the accept loop against Close
	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	logger *log.Logger
}

func NewServer(conf ServerConfig, init Initializer) (*Server, error) {
	if err := conf.Channel.Validate(); err != nil {
		return nil, err
	}
	if conf.Workers <= 0 {
		conf.Workers = DefaultWorkers
	}
	if conf.ReadBufferSize <= 0 {
		conf.ReadBufferSize = DefaultReadBufferSize
	}
	pool, err := ants.NewPool(conf.Workers)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidConfig, serverCaller, err, "creating pool of %d workers", conf.Workers)
	}
	return &Server{
		conf:   conf,
		init:   init,
		pool:   pool,
		done:   make(chan struct{}),
		logger: logs.NewLogger(serverCaller),
	}, nil
}

// Listen binds the listen address. Serve calls it if it was not called before.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.conf.ListenAddr)
	if err != nil {
		return errors.Wrap(errors.KindInvalidConfig, serverCaller, err, "listening on %s", s.conf.ListenAddr)
	}
	if s.conf.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.conf.MaxConnections)
	}
	s.listener = l
	s.logger.Infof("Listening on %s", l.Addr())
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	gopool.CtxGo(ctx, func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	})

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				s.logger.Warnf("Accept failed, retrying: %s", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return errors.Wrap(errors.KindClosed, serverCaller, err, "accepting on %s", s.listener.Addr())
		}

		if !s.track() {
			_ = conn.Close()
			return nil
		}
		if err := s.pool.Submit(func() { s.handle(conn) }); err != nil {
			s.wg.Done()
			s.logger.Errorf("Rejecting connection from %s: %s", conn.RemoteAddr(), err)
			_ = conn.Close()
		}
	}
}

// track registers a handler with the wait group unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	s.wg.Add(1)
	return true
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		if x := recover(); x != nil {
			s.logger.Errorf("Connection handler panicked: %v, STACK: %s", x, string(debug.Stack()))
			_ = conn.Close()
		}
	}()

	ch, err := channel.New(s.conf.Channel, conn, s.logger)
	if err != nil {
		s.logger.Errorf("Could not set up channel for %s: %s", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	if s.init != nil {
		if err := s.init(ch); err != nil {
			s.logger.Errorf("Initializer failed for %s: %s", conn.RemoteAddr(), err)
			_ = ch.Close()
			return
		}
	}
	s.channels.Store(ch.ID(), ch)
	defer s.channels.Delete(ch.ID())
	defer ch.Close()
	select {
	case <-s.done:
		return
	default:
	}

	s.logger.Infof("Accepted %s as channel %s", conn.RemoteAddr(), ch.ID())
	buf := mcache.Malloc(s.conf.ReadBufferSize)
	defer mcache.Free(buf)
	for {
		if s.conf.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.conf.ReadTimeout)); err != nil {
				s.logger.Error(err)
			}
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := ch.Feed(buf[:n]); ferr != nil {
				return
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				errors.Timeout(serverCaller, err, "channel %s idle for %s", ch.ID(), s.conf.ReadTimeout).Log(s.logger)
			} else if err != io.EOF && !ch.Closed() {
				s.logger.Warnf("Read from channel %s failed: %s", ch.ID(), err)
			}
			return
		}
	}
}

// Close stops accepting, closes every open channel and waits for their
// handlers to return.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.channels.Range(func(_, v interface{}) bool {
			_ = v.(*channel.Channel).Close()
			return true
		})
		s.wg.Wait()
		s.pool.Release()
	})
	return err
}
