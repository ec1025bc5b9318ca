//go:build !unix && !windows

package load

import (
	"fmt"
	"runtime"
	"time"
)

func processCPUTime() (time.Duration, error) {
	return 0, fmt.Errorf("%w on %s", ErrUnsupported, runtime.GOOS)
}
