package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFilePath returns the path of the owner lock for a settings file.
func LockFilePath(settingsPath string) string {
	return settingsPath + ".lock"
}

// OwnerLock marks the single process allowed to mutate a settings file.
type OwnerLock struct {
	path string
	file *os.File
}

// AcquireLock takes the owner lock for settingsPath.
// Returns an error if another live process holds it.
func AcquireLock(settingsPath string) (*OwnerLock, error) {
	fp := LockFilePath(settingsPath)

	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(fp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			data, readErr := os.ReadFile(fp)
			if readErr == nil {
				pidStr := strings.TrimSpace(string(data))
				if pid, parseErr := strconv.Atoi(pidStr); parseErr == nil {
					if !processAlive(pid) {
						// Stale lock: owning process is dead. Remove and retry.
						os.Remove(fp)
						return AcquireLock(settingsPath)
					}
				}
				return nil, fmt.Errorf("settings are owned by another process (PID: %s). Remove %s if the process is not running", pidStr, fp)
			}
			return nil, fmt.Errorf("settings lock already held at %s", fp)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	fmt.Fprintf(f, "%d", os.Getpid())

	return &OwnerLock{path: fp, file: f}, nil
}

// Release releases the owner lock.
func (l *OwnerLock) Release() error {
	var closeErr error
	if l.file != nil {
		closeErr = l.file.Close()
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil {
		return err
	}
	return closeErr
}

// processAlive checks whether a process with the given PID exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ReadLockStatus reports the PID recorded in the owner lock for settingsPath
// and whether that process is alive. pid is 0 when there is no readable lock.
func ReadLockStatus(settingsPath string) (pid int, running bool) {
	data, err := os.ReadFile(LockFilePath(settingsPath))
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}
