// Package sshinfo runs one-shot SSH connections: checking that a set of
// credentials works and collecting basic facts about the remote host.
package sshinfo

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

// NotAvailable is reported for any fact whose command failed.
const NotAvailable = "N/A"

// DefaultCommandTimeout bounds each remote command.
const DefaultCommandTimeout = 10 * time.Second

const (
	cmdHostname = "hostname"
	cmdOSType   = "uname -s"
	cmdKernel   = "uname -r"
	cmdUptime   = "uptime"
	cmdCores    = "nproc"
	cmdMemory   = "free -h | grep Mem | awk '{print $2}'"
	cmdDisk     = "df -h / | tail -1 | awk '{print $5}'"
)

// ValidationInfo is returned by a successful credential check.
type ValidationInfo struct {
	Hostname   string `json:"hostname"`
	OSType     string `json:"osType"`
	ServerTime string `json:"serverTime"`
}

// ServerInfo describes a remote host.
type ServerInfo struct {
	Hostname    string `json:"hostname"`
	OSType      string `json:"osType"`
	OSVersion   string `json:"osVersion"`
	Uptime      string `json:"uptime"`
	CPUCores    int    `json:"cpuCores"`
	MemoryTotal string `json:"memoryTotal"`
	DiskUsage   string `json:"diskUsage"`
}

// Service dials a fresh connection per call and closes it before returning.
type Service struct {
	dialer         *sshproxy.Dialer
	commandTimeout time.Duration
	now            func() time.Time
}

func New(dialer *sshproxy.Dialer, commandTimeout time.Duration) *Service {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	return &Service{dialer: dialer, commandTimeout: commandTimeout, now: time.Now}
}

// Validate checks that req can log in and reports the host's name, kernel
// family and current time.
func (s *Service) Validate(ctx context.Context, req Request, sourceIP string) (*ValidationInfo, error) {
	client, err := s.dial(ctx, req, sourceIP)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	info := &ValidationInfo{
		Hostname:   s.run(ctx, client, cmdHostname),
		OSType:     s.run(ctx, client, cmdOSType),
		ServerTime: s.now().UTC().Format(time.RFC3339),
	}
	sshaudit.LogConnectionValidated(auditTarget(req, sourceIP))
	return info, nil
}

// Info collects facts about the host req logs in to. Individual command
// failures degrade to NotAvailable (or 0 cores) instead of failing the call.
func (s *Service) Info(ctx context.Context, req Request, sourceIP string) (*ServerInfo, error) {
	client, err := s.dial(ctx, req, sourceIP)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	info := &ServerInfo{
		Hostname:    s.run(ctx, client, cmdHostname),
		OSType:      s.run(ctx, client, cmdOSType),
		OSVersion:   s.run(ctx, client, cmdKernel),
		Uptime:      parseUptime(s.run(ctx, client, cmdUptime)),
		MemoryTotal: s.run(ctx, client, cmdMemory),
		DiskUsage:   s.run(ctx, client, cmdDisk),
	}
	if n, err := strconv.Atoi(s.run(ctx, client, cmdCores)); err == nil {
		info.CPUCores = n
	}
	return info, nil
}

func (s *Service) dial(ctx context.Context, req Request, sourceIP string) (*sshproxy.Client, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	client, err := s.dialer.Dial(ctx, req.target())
	if err != nil {
		code := sshproxy.Classify(err)
		log.Printf("[sshinfo] connection to %s@%s failed: %s: %v",
			logutil.SanitizeForLog(req.Username), logutil.SanitizeForLog(req.Host), code, err)
		sshaudit.LogConnectionFailed(auditTarget(req, sourceIP), string(code), apperr.MessageOf(err))
		return nil, err
	}
	return client, nil
}

// run executes cmd and returns its trimmed output, or NotAvailable.
func (s *Service) run(ctx context.Context, client *sshproxy.Client, cmd string) string {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	out, err := client.Run(ctx, cmd)
	if err != nil {
		log.Printf("[sshinfo] %q on %s failed: %v", cmd, client.Addr(), err)
		return NotAvailable
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return NotAvailable
	}
	return out
}

// parseUptime extracts the span between "up" and the next comma from uptime
// output, e.g. "5 days" from "10:30:01 up 5 days,  3:02,  2 users, ...".
func parseUptime(out string) string {
	i := strings.Index(out, "up ")
	if i < 0 {
		return NotAvailable
	}
	rest := out[i+len("up "):]
	if j := strings.Index(rest, ","); j >= 0 {
		rest = rest[:j]
	}
	if rest = strings.TrimSpace(rest); rest == "" {
		return NotAvailable
	}
	return rest
}

func auditTarget(req Request, sourceIP string) sshaudit.Target {
	t := req.target()
	return sshaudit.Target{Host: t.Host, Port: t.Port, Username: t.Username, SourceIP: sourceIP}
}
