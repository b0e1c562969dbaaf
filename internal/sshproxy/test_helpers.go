package sshproxy

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/xivicWon/ssh-monitor/internal/sshkeys"
)

// TestCommand is a canned response for an exec request on a TestServer.
type TestCommand struct {
	Output string
	Exit   int
}

// TestServerOpts configures a TestServer.
type TestServerOpts struct {
	// Password accepted for any user. Empty disables password auth.
	Password string
	// AuthorizedKey accepted for public-key auth. Nil disables key auth.
	AuthorizedKey ssh.PublicKey
	// Commands maps exact exec command lines to responses. Unknown
	// commands exit 127.
	Commands map[string]TestCommand
	// Banner is written when a shell starts.
	Banner string
}

// TestServer is an in-process SSH server for tests. Shell sessions echo
// stdin back and exit with status 0 on a line reading "exit".
type TestServer struct {
	opts     TestServerOpts
	config   *ssh.ServerConfig
	listener net.Listener
	done     chan struct{}

	mu      sync.Mutex
	conns   []*ssh.ServerConn
	ptys    []PTYRequest
	resizes []string
	execs   []string
}

// NewTestServer starts a TestServer on 127.0.0.1 with a random port.
func NewTestServer(opts TestServerOpts) (*TestServer, error) {
	_, hostKeyPEM, err := sshkeys.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	hostSigner, err := sshkeys.ParsePrivateKey(string(hostKeyPEM), "")
	if err != nil {
		return nil, fmt.Errorf("parse host key: %w", err)
	}

	config := &ssh.ServerConfig{}
	if opts.Password != "" {
		config.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if string(password) == opts.Password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		}
	}
	if opts.AuthorizedKey != nil {
		config.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(opts.AuthorizedKey) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		}
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &TestServer{
		opts:     opts,
		config:   config,
		listener: listener,
		done:     make(chan struct{}),
	}
	go s.serve()
	return s, nil
}

// Host returns the listening host.
func (s *TestServer) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *TestServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close stops accepting and drops every open connection.
func (s *TestServer) Close() {
	s.listener.Close()
	<-s.done
	s.DropConnections()
}

// DropConnections closes every server-side connection, simulating a network
// failure.
func (s *TestServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// PTYs returns the PTY requests received so far.
func (s *TestServer) PTYs() []PTYRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PTYRequest(nil), s.ptys...)
}

// Resizes returns received window changes formatted as "COLSxROWS".
func (s *TestServer) Resizes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resizes...)
}

// Execs returns the exec command lines received so far.
func (s *TestServer) Execs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.execs...)
}

func (s *TestServer) serve() {
	defer close(s.done)
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(netConn)
	}
}

func (s *TestServer) handleConnection(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	s.mu.Lock()
	s.conns = append(s.conns, sshConn)
	s.mu.Unlock()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *TestServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			var p struct {
				Term          string
				Cols, Rows    uint32
				Width, Height uint32
				Modes         string
			}
			if err := ssh.Unmarshal(req.Payload, &p); err == nil {
				s.mu.Lock()
				s.ptys = append(s.ptys, PTYRequest{Term: p.Term, Cols: int(p.Cols), Rows: int(p.Rows)})
				s.mu.Unlock()
			}
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "window-change":
			var w struct {
				Cols, Rows    uint32
				Width, Height uint32
			}
			if err := ssh.Unmarshal(req.Payload, &w); err == nil {
				s.mu.Lock()
				s.resizes = append(s.resizes, fmt.Sprintf("%dx%d", w.Cols, w.Rows))
				s.mu.Unlock()
			}
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "exec":
			var e struct{ Command string }
			ssh.Unmarshal(req.Payload, &e)
			if req.WantReply {
				req.Reply(true, nil)
			}
			s.runExec(ch, e.Command)
			return

		case "shell":
			if req.WantReply {
				req.Reply(true, nil)
			}
			go s.runShell(ch)

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *TestServer) runExec(ch ssh.Channel, cmd string) {
	s.mu.Lock()
	s.execs = append(s.execs, cmd)
	s.mu.Unlock()

	resp, ok := s.opts.Commands[cmd]
	if !ok {
		resp = TestCommand{Output: "sh: command not found\n", Exit: 127}
	}
	ch.Write([]byte(resp.Output))
	sendExitStatus(ch, resp.Exit)
}

func (s *TestServer) runShell(ch ssh.Channel) {
	if s.opts.Banner != "" {
		ch.Write([]byte(s.opts.Banner))
	}
	buf := make([]byte, 4096)
	var line strings.Builder
	for {
		n, err := ch.Read(buf)
		if n > 0 {
			ch.Write(buf[:n])
			for _, b := range buf[:n] {
				if b == '\n' || b == '\r' {
					if strings.TrimSpace(line.String()) == "exit" {
						sendExitStatus(ch, 0)
						ch.Close()
						return
					}
					line.Reset()
					continue
				}
				line.WriteByte(b)
			}
		}
		if err != nil {
			return
		}
	}
}

func sendExitStatus(ch ssh.Channel, code int) {
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)}))
}
