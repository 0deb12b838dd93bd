package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"golang.org/x/sys/unix"
)

const (
	filePrefix  = "sleepy_nas_"
	maxAttempts = 5
)

// Lock is an exclusive advisory lock on <dir>/sleepy_nas_<label>.lock held for
// the lifetime of the process. Release must be called on every exit path.
type Lock struct {
	path string
	file *os.File
	once sync.Once
	err  error
}

// Path returns the lock file path for label inside dir.
func Path(dir, label string) string {
	return filepath.Join(dir, filePrefix+label+".lock")
}

// Acquire takes the lock for label or fails with ErrAlreadyRunning when another
// process holds it.
func Acquire(dir, label string) (*Lock, error) {
	errFactory := errors.New()
	path := Path(dir, label)

	var file *os.File
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInitFailed, err).WithData(path)
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, errFactory.New(errors.ErrAlreadyRunning).WithData(path)
			}

			return nil, errFactory.Wrap(errors.ErrInitFailed, err).WithData(path)
		}

		// A releasing owner unlinks the file before unlocking; a lock on the
		// unlinked file guards nothing, so start over on the current one.
		if sameFile(f, path) {
			file = f
			break
		}
		f.Close()

		if attempt >= maxAttempts {
			return nil, errFactory.WithData(errors.ErrInitFailed, path+" keeps being replaced")
		}
		logger.Debug().Str("path", path).Msg("Lock file replaced while locking, retrying")
	}

	// The pid is informational only; the flock is what guards the instance.
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	logger.Debug().Str("path", path).Msg("Instance lock acquired")

	return &Lock{path: path, file: file}, nil
}

// Path returns the path of the held lock file.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file and drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	l.once.Do(func() {
		errFactory := errors.New()

		// Remove while still holding the lock so a waiting instance never sees our file.
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.err = errFactory.Wrap(errors.ErrShutdownFailed, err).WithData(l.path)
		}
		if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil && l.err == nil {
			l.err = errFactory.Wrap(errors.ErrShutdownFailed, err).WithData(l.path)
		}
		if err := l.file.Close(); err != nil && l.err == nil {
			l.err = errFactory.Wrap(errors.ErrShutdownFailed, err).WithData(l.path)
		}

		logger.Debug().Str("path", l.path).Msg("Instance lock released")
	})

	return l.err
}

func sameFile(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}

	return os.SameFile(held, current)
}
