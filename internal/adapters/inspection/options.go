package inspection

import "github.com/okian/dealsync/pkg/logger"

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the structured logger used for debug output.
func WithLogger(l logger.Logger) Option {
	return func(il *Logger) {
		il.log = l
	}
}
