//go:build windows

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// stopTimeout bounds how long a Stop request waits for the agent to return.
const stopTimeout = 20 * time.Second

type AgentService struct {
	Name string
	// Run is the agent. It must return once its context is cancelled.
	Run func(ctx context.Context) error
	// Heartbeat re-posts the Running status on this interval. Zero disables it.
	Heartbeat time.Duration
}

func (m *AgentService) Execute(args []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {

	s <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	if m.Heartbeat > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runHeartbeat(ctx, s, m.Name, m.Heartbeat)
		}()
	}

	s <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	slog.Info("Service started", "servicename", m.Name)

	for {
		select {
		case err := <-errc:
			if err != nil {
				slog.Error("Agent exited", "servicename", m.Name, "error", err)
				return true, 1
			}
			return false, 0

		case req := <-r:
			switch req.Cmd {
			case svc.Interrogate:
				s <- req.CurrentStatus

			case svc.Stop, svc.Shutdown:
				slog.Info("Service stop requested", "command", int(req.Cmd), "servicename", m.Name)
				s <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-errc:
				case <-time.After(stopTimeout):
					slog.Warn("Agent did not stop in time", "servicename", m.Name)
				}
				return false, 0

			default:
				slog.Warn("Unhandled service command", "command", int(req.Cmd), "servicename", m.Name)
			}
		}
	}
}

func runHeartbeat(ctx context.Context, statusChan chan<- svc.Status, serviceName string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := queryServiceStatus(serviceName)
		if err != nil {
			slog.Error("Failed to query service status", "servicename", serviceName, "error", err)
		}
		slog.Info("Service heartbeat", "servicename", serviceName, "state", state)

		select {
		case statusChan <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}:
		case <-ctx.Done():
			return
		}
	}
}

// Run hands control to the service control manager and blocks until the
// service stops.
func Run(name string, run func(ctx context.Context) error, heartbeat time.Duration) error {
	slog.Info("Running as Windows Service", "servicename", name)
	return svc.Run(name, &AgentService{Name: name, Run: run, Heartbeat: heartbeat})
}

// IsWindowsService reports whether the process was started by the SCM.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

func queryServiceStatus(serviceName string) (string, error) {
	m, err := mgr.Connect()
	if err != nil {
		return "", err
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return "", err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return "", err
	}

	return serviceStateToString(status.State), nil
}

// human readable labels

func serviceStateToString(state svc.State) string {
	switch state {
	case svc.Stopped:
		return "Stopped"
	case svc.StartPending:
		return "Start Pending"
	case svc.StopPending:
		return "Stop Pending"
	case svc.Running:
		return "Running"
	case svc.ContinuePending:
		return "Continue Pending"
	case svc.PausePending:
		return "Pause Pending"
	case svc.Paused:
		return "Paused"
	default:
		return fmt.Sprintf("Unknown (%d)", state)
	}
}
