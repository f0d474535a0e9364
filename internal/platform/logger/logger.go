package logger

import "go.uber.org/zap"

// New builds a zap logger for the given environment. Development gets the
// console encoder, everything else structured JSON at info level.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNamed builds a logger carrying the service name on every entry.
func NewNamed(env, service string) (*zap.Logger, error) {
	l, err := New(env)
	if err != nil {
		return nil, err
	}
	return l.Named(service), nil
}
