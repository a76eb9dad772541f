// Package restserver serves the most recent exposure report over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/thermexposure/internal/batch"
	"github.com/chrissnell/thermexposure/internal/log"
	"github.com/chrissnell/thermexposure/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	logger   *zap.SugaredLogger
	handlers *Handlers

	mu     sync.RWMutex
	report *batch.Report
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTData, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		logger: logger,
	}

	// If a ListenAddr was not provided, listen on loopback only
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 127.0.0.1")
		rc.ListenAddr = "127.0.0.1"
	}

	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}
	if rc.Port < 0 || rc.Port > 65535 {
		return nil, fmt.Errorf("invalid rest.port %d", rc.Port)
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// SetReport publishes the report served by the endpoints
func (c *Controller) SetReport(r *batch.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = r
}

func (c *Controller) currentReport() *batch.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// StartController binds the listen address and starts the REST server. A
// bind failure is returned to the caller.
func (c *Controller) StartController() error {
	ln, err := net.Listen("tcp", c.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Server.Addr, err)
	}
	log.Infof("Starting REST server on %s...", ln.Addr())
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.Serve(ln); err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/report", c.handlers.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/nodes/{node}", c.handlers.GetNode).Methods(http.MethodGet)
	router.HandleFunc("/failures", c.handlers.GetFailures).Methods(http.MethodGet)

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		log.LogHTTPRequest(req.Method, req.URL.Path, rec.status, time.Since(start), rec.size, req.RemoteAddr, req.UserAgent(), nil)
	})
}
