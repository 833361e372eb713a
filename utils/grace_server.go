package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadTimeout     = 60 * time.Second
	defaultWriteTimeout    = defaultReadTimeout
	defaultShutdownTimeout = 30 * time.Second

	// a restarted child finds the inherited listener on this fd
	gracefulEnvKey     = "IS_GRACEFUL"
	gracefulEnvValue   = gracefulEnvKey + "=1"
	gracefulListenerFD = 3
)

// Server wraps http.Server with signal driven shutdown (SIGTERM, SIGINT) and
// zero-downtime restart (SIGUSR2).
type Server struct {
	*http.Server

	logger          *zap.SugaredLogger
	listener        net.Listener
	isGraceful      bool
	shutdownTimeout time.Duration
	signalChan      chan os.Signal
	ready           chan struct{}
	shutdownChan    chan struct{}
	shutdownOnce    sync.Once
}

// NewServer creates a Server with timeouts and handler. A nil logger uses Sugar.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = Sugar
	}
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger:          logger,
		isGraceful:      os.Getenv(gracefulEnvKey) != "",
		shutdownTimeout: defaultShutdownTimeout,
		signalChan:      make(chan os.Signal, 1),
		ready:           make(chan struct{}),
		shutdownChan:    make(chan struct{}),
	}
}

// Ready is closed once the server is listening.
func (srv *Server) Ready() <-chan struct{} { return srv.ready }

// ListenerAddr returns the bound address. Only valid after Ready is closed.
func (srv *Server) ListenerAddr() net.Addr { return srv.listener.Addr() }

// ListenAndServe starts serving on tcp and handles signals.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.getNetListener(addr)
	if err != nil {
		return err
	}
	srv.listener = ln
	return srv.serve()
}

// ListenAndServeTLS is ListenAndServe over TLS.
func (srv *Server) ListenAndServeTLS(certFile, keyFile string) error {
	addr := srv.Addr
	if addr == "" {
		addr = ":https"
	}

	cfg := &tls.Config{}
	if srv.TLSConfig != nil {
		cfg = srv.TLSConfig.Clone()
	}
	if cfg.NextProtos == nil {
		cfg.NextProtos = []string{"http/1.1"}
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	cfg.Certificates = []tls.Certificate{cert}

	ln, err := srv.getNetListener(addr)
	if err != nil {
		return err
	}
	srv.listener = tls.NewListener(ln, cfg)
	return srv.serve()
}

func (srv *Server) serve() error {
	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(srv.signalChan)
	go srv.handleSignals()

	close(srv.ready)
	err := srv.Server.Serve(srv.listener)
	// wait until Shutdown finished draining
	<-srv.shutdownChan
	return err
}

func (srv *Server) getNetListener(addr string) (net.Listener, error) {
	if srv.isGraceful {
		file := os.NewFile(gracefulListenerFD, "")
		ln, err := net.FileListener(file)
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for {
		select {
		case <-srv.shutdownChan:
			return
		case sig := <-srv.signalChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				srv.logger.Infow("graceful shutdown requested", "signal", sig.String())
				srv.Stop()
				return
			case syscall.SIGUSR2:
				srv.logger.Info("graceful restart requested")
				pid, err := srv.startNewProcess()
				if err != nil {
					srv.logger.Errorw("start new process failed, continuing to serve", "error", err)
					continue
				}
				srv.logger.Infow("new process started, draining this one", "pid", pid)
				srv.Stop()
				return
			}
		}
	}
}

// Stop drains in-flight requests and shuts the server down. It is idempotent.
func (srv *Server) Stop() {
	srv.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.logger.Errorw("HTTP server shutdown error", "error", err)
		} else {
			srv.logger.Info("HTTP server shutdown complete")
		}
		close(srv.shutdownChan)
	})
}

// startNewProcess re-executes the binary, handing it the listening socket.
func (srv *Server) startNewProcess() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, not *net.TCPListener", srv.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			envs = append(envs, e)
		}
	}
	envs = append(envs, gracefulEnvValue)

	attr := &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	}
	pid, err := syscall.ForkExec(os.Args[0], os.Args, attr)
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until a shutdown signal arrives.
func GraceServer(addr string, handler http.Handler) error {
	return NewServer(addr, handler, defaultReadTimeout, defaultWriteTimeout, Sugar).ListenAndServe()
}

// GraceServerTLS is GraceServer over TLS.
func GraceServerTLS(addr, certFile, keyFile string, handler http.Handler) error {
	return NewServer(addr, handler, defaultReadTimeout, defaultWriteTimeout, Sugar).ListenAndServeTLS(certFile, keyFile)
}
