// Package lockfile keeps two DocFlow processes from sharing one state directory.
//
// The lock is an flock(2) on a file inside the state directory, so the kernel
// drops it when the holding process exits, however it exits.
package lockfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "docflow.lock"

// Holder is the process record written into the lock file.
type Holder struct {
	PID     int       `json:"pid"`
	Command string    `json:"command"`
	Started time.Time `json:"started"`
}

func (h Holder) String() string {
	state := "running"
	if !processAlive(h.PID) {
		state = "not running, stale lock"
	}
	return fmt.Sprintf("PID %d (%s), %s, started %s", h.PID, state, h.Command, h.Started.Format(time.RFC3339))
}

// Lock is a held state directory lock.
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory if needed.
// If another process holds it, the returned error is a *LockError.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	lockPath := filepath.Join(stateDir, LockFileName)

	// O_TRUNC would wipe the holder's record before we know whether we won.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		existing, _ := ReadHolder(lockPath)
		slog.Error("Lockfile AcquireLock conflict", "lock_path", lockPath, "holder", existing)
		return nil, &LockError{LockPath: lockPath, Holder: existing, Cause: err}
	}

	holder := Holder{
		PID:     os.Getpid(),
		Command: strings.Join(os.Args, " "),
		Started: time.Now().UTC(),
	}
	if err := writeHolder(file, holder); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock holder to %s: %w", lockPath, err)
	}

	slog.Debug("Lockfile AcquireLock succeeded", "lock_path", lockPath, "pid", holder.PID)
	return &Lock{file: file, path: lockPath, holder: holder}, nil
}

func writeHolder(file *os.File, h Holder) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt(append(data, '\n'), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Lockfile sync failed", "error", err, "lock_path", file.Name())
	}
	return nil
}

// ReadHolder parses the holder record in a lock file. A missing or garbled
// record yields nil.
func ReadHolder(lockPath string) (*Holder, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil || h.PID <= 0 {
		return nil, nil
	}
	return &h, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Holder returns the record this process wrote.
func (l *Lock) Holder() Holder {
	return l.holder
}

// Release unlocks and removes the lock file. Calling it more than once is fine.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove while still holding the lock so a waiter never locks a file we then delete.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lockfile remove failed", "error", err, "lock_path", l.path)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile unlock failed", "error", err, "lock_path", l.path)
	}
	err := l.file.Close()
	l.file = nil
	slog.Debug("Lockfile Release succeeded", "lock_path", l.path)
	if err != nil {
		return fmt.Errorf("failed to close lock file %s: %w", l.path, err)
	}
	return nil
}

// LockError reports that another process holds the state directory.
type LockError struct {
	LockPath string
	Holder   *Holder
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another DocFlow process is using this state directory (lock file %s)", e.LockPath)
	if e.Holder != nil {
		fmt.Fprintf(&b, "; holder: %s", e.Holder)
	}
	fmt.Fprintf(&b, "; if no other DocFlow process is running, remove %s and retry", e.LockPath)
	return b.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// processAlive sends signal 0, which checks existence without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
