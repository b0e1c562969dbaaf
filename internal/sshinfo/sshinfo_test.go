package sshinfo

import (
	"context"
	"testing"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/database"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

func setupAuditor(t *testing.T) *sshaudit.Auditor {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	a := sshaudit.NewAuditor(db, 90)
	sshaudit.SetGlobalForTest(a)
	t.Cleanup(sshaudit.ResetGlobalForTest)
	return a
}

func startServer(t *testing.T, commands map[string]sshproxy.TestCommand) *sshproxy.TestServer {
	t.Helper()
	srv, err := sshproxy.NewTestServer(sshproxy.TestServerOpts{Password: "pw", Commands: commands})
	if err != nil {
		t.Fatalf("NewTestServer: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func request(srv *sshproxy.TestServer, password string) Request {
	return Request{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Username: "alice",
		AuthType: "password",
		Password: password,
	}
}

func newService() *Service {
	return New(sshproxy.NewDialer(5*time.Second, nil), 2*time.Second)
}

func TestValidate(t *testing.T) {
	a := setupAuditor(t)
	srv := startServer(t, map[string]sshproxy.TestCommand{
		"hostname": {Output: "web-01\n"},
		"uname -s": {Output: "Linux\n"},
	})

	svc := newService()
	svc.now = func() time.Time { return time.Date(2024, 1, 15, 19, 30, 0, 0, time.FixedZone("KST", 9*3600)) }

	info, err := svc.Validate(context.Background(), request(srv, "pw"), "10.0.0.7")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := ValidationInfo{Hostname: "web-01", OSType: "Linux", ServerTime: "2024-01-15T10:30:00Z"}
	if *info != want {
		t.Errorf("info = %+v, want %+v", *info, want)
	}

	res, err := a.Query(sshaudit.QueryOptions{EventType: sshaudit.EventConnectionValidated})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Total != 1 || res.Entries[0].SourceIP != "10.0.0.7" || res.Entries[0].Username != "alice" {
		t.Errorf("audit = %+v", res.Entries)
	}
}

func TestValidate_WrongPassword(t *testing.T) {
	a := setupAuditor(t)
	srv := startServer(t, nil)

	_, err := newService().Validate(context.Background(), request(srv, "nope"), "10.0.0.7")
	if code, _ := apperr.CodeOf(err); code != apperr.AuthFailed {
		t.Fatalf("code = %q, want AUTH_FAILED (err=%v)", code, err)
	}

	res, err := a.Query(sshaudit.QueryOptions{EventType: sshaudit.EventConnectionFailed})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Total != 1 {
		t.Errorf("expected one connection_failed entry, got %d", res.Total)
	}
}

func TestValidate_InvalidRequestSkipsDial(t *testing.T) {
	a := setupAuditor(t)

	_, err := newService().Validate(context.Background(), Request{Host: "example.com", AuthType: "password", Password: "x"}, "")
	if code, _ := apperr.CodeOf(err); code != apperr.InvalidRequest {
		t.Fatalf("code = %q, want INVALID_REQUEST", code)
	}
	if res, _ := a.Query(sshaudit.QueryOptions{}); res.Total != 0 {
		t.Errorf("validation failure should not be audited, got %d entries", res.Total)
	}
}

func TestInfo(t *testing.T) {
	setupAuditor(t)
	srv := startServer(t, map[string]sshproxy.TestCommand{
		cmdHostname: {Output: "web-01\n"},
		cmdOSType:   {Output: "Linux\n"},
		cmdKernel:   {Output: "6.1.0-18-amd64\n"},
		cmdUptime:   {Output: " 10:30:01 up 5 days,  3:02,  2 users,  load average: 0.00, 0.01, 0.05\n"},
		cmdCores:    {Output: "4\n"},
		cmdMemory:   {Output: "15Gi\n"},
		// df is missing and exits 127.
	})

	info, err := newService().Info(context.Background(), request(srv, "pw"), "")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := ServerInfo{
		Hostname:    "web-01",
		OSType:      "Linux",
		OSVersion:   "6.1.0-18-amd64",
		Uptime:      "5 days",
		CPUCores:    4,
		MemoryTotal: "15Gi",
		DiskUsage:   NotAvailable,
	}
	if *info != want {
		t.Errorf("info = %+v\nwant   %+v", *info, want)
	}
}

func TestInfo_AllCommandsFail(t *testing.T) {
	setupAuditor(t)
	srv := startServer(t, nil)

	info, err := newService().Info(context.Background(), request(srv, "pw"), "")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Hostname != NotAvailable || info.Uptime != NotAvailable || info.CPUCores != 0 {
		t.Errorf("info = %+v", *info)
	}
}

func TestParseUptime(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{" 10:30:01 up 5 days,  3:02,  2 users,  load average: 0.00", "5 days"},
		{" 10:30:01 up 42 min,  1 user,  load average: 0.00", "42 min"},
		{"up 3:02", "3:02"},
		{"no match here", NotAvailable},
		{NotAvailable, NotAvailable},
	}
	for _, tt := range tests {
		if got := parseUptime(tt.input); got != tt.want {
			t.Errorf("parseUptime(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	base := Request{Host: "h", Username: "u", AuthType: "password", Password: "p"}
	tests := []struct {
		name   string
		mutate func(*Request)
		ok     bool
	}{
		{"valid", func(*Request) {}, true},
		{"no host", func(r *Request) { r.Host = " " }, false},
		{"no username", func(r *Request) { r.Username = "" }, false},
		{"no auth type", func(r *Request) { r.AuthType = "" }, false},
		{"bad auth type", func(r *Request) { r.AuthType = "kerberos" }, false},
		{"port too high", func(r *Request) { r.Port = 65536 }, false},
		{"negative port", func(r *Request) { r.Port = -1 }, false},
		{"max port", func(r *Request) { r.Port = 65535 }, true},
		{"no password", func(r *Request) { r.Password = "" }, false},
		{"key without key", func(r *Request) { r.AuthType = "privateKey" }, false},
		{"key alias", func(r *Request) { r.AuthType = "key"; r.PrivateKey = "pem" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if code, _ := apperr.CodeOf(err); code != apperr.InvalidRequest {
					t.Fatalf("code = %q, want INVALID_REQUEST (err=%v)", code, err)
				}
			}
		})
	}

	if got := base.target().Port; got != 22 {
		t.Errorf("default port = %d, want 22", got)
	}
}
