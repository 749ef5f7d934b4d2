package realtime

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected: операция требует живого соединения.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrHealthCheckTimeout матчится с *TimeoutError через errors.Is.
	ErrHealthCheckTimeout = errors.New("realtime: health check timed out")
	ErrClosed             = errors.New("realtime: client closed")
	ErrAlreadyStarted     = errors.New("realtime: client already started")
)

// TimeoutError возвращается CheckHealth, если pong не пришёл вовремя.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("realtime: no pong within %s", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrHealthCheckTimeout }
