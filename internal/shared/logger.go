package shared

import (
	"go.uber.org/zap"
)

// NewLogger builds the process-wide zap logger. APP_ENV=development gets
// the human console encoder; everything else logs JSON.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
