package webserver

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/orderdesk/orderdesk/internal/app"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Context keys set by the middleware stack.
const (
	AppContextKey       = "appctx"
	OperatorIdKey       = "opr_id"
	OperatorUsernameKey = "opr_username"
	OperatorLevelKey    = "opr_level"
)

var server *WebServer

// Init creates the global web server instance
func Init(appctx app.AppContext) {
	server = NewWebServer(appctx)
}

// Listen starts the global web server
func Listen() error {
	return server.Start()
}

// Shutdown stops the global web server gracefully
func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.root.Shutdown(ctx)
}

type WebServer struct {
	appctx app.AppContext
	root   *echo.Echo
	api    *echo.Group
}

func NewWebServer(appctx app.AppContext) *WebServer {
	s := &WebServer{appctx: appctx}
	s.root = echo.New()
	s.root.HideBanner = true
	s.root.HidePort = true
	s.root.Pre(middleware.RemoveTrailingSlash())
	s.root.Use(middleware.Recover())
	s.root.JSONSerializer = &JsoniterSerializer{}
	s.root.Validator = NewCustomValidator()
	if appctx.Config().System.Debug {
		s.root.Logger.SetLevel(log.DEBUG)
	} else {
		s.root.Logger.SetLevel(log.ERROR)
	}

	s.root.Use(s.appContextMiddleware())
	s.root.Use(requestLogger())

	s.api = s.root.Group("/api/v1")
	s.api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(appctx.Config().Web.Secret),
		Skipper:    skipTokenCheck,
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return
			}
			c.Set(OperatorIdKey, cast.ToString(claims["uid"]))
			c.Set(OperatorUsernameKey, cast.ToString(claims["usr"]))
			c.Set(OperatorLevelKey, cast.ToString(claims["lvl"]))
		},
	}))
	return s
}

// skipTokenCheck exempts the unauthenticated endpoints
func skipTokenCheck(c echo.Context) bool {
	switch c.Path() {
	case "/api/v1/auth/login", "/api/v1/health":
		return true
	}
	return false
}

func (s *WebServer) appContextMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, s.appctx)
			return next(c)
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			zap.L().Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("remote", c.RealIP()))
			return err
		}
	}
}

func (s *WebServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.appctx.Config().Web.Host, s.appctx.Config().Web.Port)
	zap.S().Infof("Starting admin api server %s", addr)
	return s.root.Start(addr)
}

// Echo exposes the underlying router (used in tests)
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// Router returns the global server's router (used in tests)
func Router() *echo.Echo {
	if server == nil {
		return nil
	}
	return server.root
}

// ApiGET registers a GET route under /api/v1
func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

// ApiPOST registers a POST route under /api/v1
func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

// ApiPUT registers a PUT route under /api/v1
func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

// ApiDELETE registers a DELETE route under /api/v1
func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}
