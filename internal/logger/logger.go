// README: zap logger construction shared by the API server and workers.
package logger

import "go.uber.org/zap"

// New returns a production logger, or a human-readable development logger
// when env is "dev".
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
