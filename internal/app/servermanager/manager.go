package servermanager

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const stopTimeout = 10 * time.Second

var ErrAlreadyRunning = errors.New("provider process already running")

// Manager owns at most one provider process.
type Manager struct {
	name string
	args []string
	env  []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewManager(name string, args ...string) *Manager {
	return &Manager{name: name, args: args}
}

// WithEnv adds environment variables, KEY=VALUE, to the started process.
func (m *Manager) WithEnv(env ...string) *Manager {
	m.env = append(m.env, env...)
	return m
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil {
		return errors.Wrapf(ErrAlreadyRunning, "pid %d", m.cmd.Process.Pid)
	}

	cmd := exec.Command(m.name, m.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), m.env...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "unable to start %s", m.name)
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			log.WithField("pid", cmd.Process.Pid).Infof("provider process exited: %s", err)
		}
		close(done)
	}()

	log.WithField("pid", cmd.Process.Pid).Infof("started %s", m.name)
	m.cmd = cmd
	m.done = done
	return nil
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != nil
}

// Stop sends SIGTERM and waits for the process to exit, killing it after a timeout.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cmd, done := m.cmd, m.done
	m.cmd, m.done = nil, nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}

	log.WithField("pid", cmd.Process.Pid).Infof("stopping %s", m.name)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "unable to stop %s", m.name)
	}

	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.WithField("pid", cmd.Process.Pid).Warn("provider did not stop, killing it")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return errors.Wrapf(err, "unable to kill %s", m.name)
		}
		<-done
	}
	return nil
}
