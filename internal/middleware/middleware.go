package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

type Middleware func(http.Handler, *zap.SugaredLogger) http.Handler

// Conveyor wraps h in the given middlewares, first one innermost.
func Conveyor(h http.Handler, sugar *zap.SugaredLogger, middlewares ...Middleware) http.Handler {
	for _, middleware := range middlewares {
		h = middleware(h, sugar)
	}
	return h
}
