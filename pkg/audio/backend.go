package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

// BackendAuto selects the highest priority backend that works.
const BackendAuto = "auto"

type backend interface {
	io.Closer
	Ping(context.Context) error
}

type candidate[T backend] struct {
	name string
	open func() (T, error)
}

// lastBackend remembers the backend that worked the last time, so it
// is tried first.
type lastBackend struct {
	locker sync.Mutex
	name   string
}

func (l *lastBackend) get() string {
	l.locker.Lock()
	defer l.locker.Unlock()
	return l.name
}

func (l *lastBackend) set(name string) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.name = name
}

// openFirst returns the first candidate that could be opened and
// pinged; the rejected ones are closed.
func openFirst[T backend](
	ctx context.Context,
	kind string,
	last *lastBackend,
	candidates []candidate[T],
) (_ T, _ string, _err error) {
	if last != nil {
		if name := last.get(); name != "" {
			for idx, c := range candidates {
				if c.name == name {
					candidates = append([]candidate[T]{c}, append(candidates[:idx:idx], candidates[idx+1:]...)...)
					break
				}
			}
		}
	}

	var mErr *multierror.Error
	for _, c := range candidates {
		b, err := c.open()
		logger.Debugf(ctx, "initializing %s '%s' result is %v", kind, c.name, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize '%s': %w", c.name, err))
			continue
		}

		err = b.Ping(ctx)
		logger.Debugf(ctx, "pinging %s '%s' result is %v", kind, c.name, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping '%s': %w", c.name, err))
			b.Close()
			continue
		}

		if last != nil {
			last.set(c.name)
		}
		return b, c.name, nil
	}

	var zero T
	if mErr == nil {
		return zero, "", fmt.Errorf("no PCM %s backends are registered", kind)
	}
	return zero, "", fmt.Errorf("was unable to initialize any PCM %s: %w", kind, mErr)
}
