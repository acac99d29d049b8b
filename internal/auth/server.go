package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Server is the short-lived localhost HTTP server that collects credentials
// for the interactive login flow. It serves a login form on GET / and handles
// submissions on POST /login, running the login synchronously on the request
// goroutine. A failed login leaves the flow active so the user can retry in
// the same browser tab; only a successful login signals completion.
type Server struct {
	manager    *Manager
	port       int
	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// NewServer creates an auth server bound to localhost on the given port.
func NewServer(manager *Manager, port int) *Server {
	return &Server{manager: manager, port: port}
}

// URL returns the address of the login page.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Start binds the listener and serves requests on a background goroutine.
// A bind failure (typically the port already in use) is returned to the
// caller; serve-loop errors after a successful bind are only logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("auth server is already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.port, err)
	}

	engine := gin.New()
	engine.Use(s.accessLog(), s.recovery())
	engine.GET("/", s.handleLoginPage)
	engine.POST("/login", s.handleLogin)

	s.httpServer = &http.Server{
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.running = true

	go func() {
		if errServe := s.httpServer.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Errorf("auth server terminated: %v", errServe)
		}
	}()

	log.Infof("auth server started on %s", s.URL())
	return nil
}

// Stop shuts the server down gracefully, waiting for an in-flight submission
// to finish writing its response. Calling Stop on a stopped server is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.running = false
	s.httpServer = nil
	log.Debug("auth server stopped")
	return err
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) handleLoginPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loginPageHTML))
}

// handleLogin processes a form submission. Every failure mode degrades to a
// JSON failure response; the listener loop must never die on a malformed or
// duplicate submission.
func (s *Server) handleLogin(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	collection := c.PostForm("collection")

	if email == "" || password == "" {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Email and password are required",
		})
		return
	}

	s.manager.SetCollection(collection)

	if _, err := s.manager.Login(c.Request.Context(), email, password); err != nil {
		log.Errorf("browser login failed: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	log.Info("browser authentication successful")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Authentication successful",
	})
}

// accessLog writes one logrus line per request, tagged with a request id for
// correlating form submissions with login attempts.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()[:8]
		start := time.Now()

		c.Next()

		log.Debugf("[auth %s] %s %s -> %d (%v)", requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("auth server recovered from panic")

		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Internal error during authentication",
		})
		c.Abort()
	})
}
