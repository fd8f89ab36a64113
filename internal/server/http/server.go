// Package http exposes the credential operations as a JSON API.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/consejo/internal/logging"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/ratelimit"
	"github.com/dmitrijs2005/consejo/internal/server/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// UserService is the part of services.UserService the handlers call.
type UserService interface {
	Register(ctx context.Context, in services.SignUpInput) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LookupSecurityQuestion(ctx context.Context, userName string) (string, error)
	ResetPasswordWithSecurity(ctx context.Context, userName, answer, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error
	UpdateSecurityQA(ctx context.Context, userID, currentPassword, question, answer string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// Throttle counts attempts per scope and key. *ratelimit.Limiter implements it.
type Throttle interface {
	Check(ctx context.Context, scope ratelimit.Scope, key string) error
	Exceeded(ctx context.Context, scope ratelimit.Scope, key string) error
	Reset(ctx context.Context, scope ratelimit.Scope, key string) error
	RetryAfter(ctx context.Context, scope ratelimit.Scope, key string) (time.Duration, error)
}

// Pinger reports store health. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	address   string
	users     UserService
	throttle  Throttle
	store     Pinger
	logger    logging.Logger
	jwtSecret []byte

	// trustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	trustProxy bool
}

func NewHTTPServer(a string, l logging.Logger, us UserService, t Throttle, p Pinger, secretKey string, trustProxy bool) *HTTPServer {
	return &HTTPServer{
		address:    a,
		logger:     l.With("module", "http_server"),
		users:      us,
		throttle:   t,
		store:      p,
		jwtSecret:  []byte(secretKey),
		trustProxy: trustProxy,
	}
}

func (s *HTTPServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *HTTPServer) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
