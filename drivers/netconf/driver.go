package netconf

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/optolab/oxc-southbound/types"
)

// NETCONF message IDs
var messageID uint64 = 0
var messageIDMu sync.Mutex

func nextMessageID() uint64 {
	messageIDMu.Lock()
	defer messageIDMu.Unlock()
	messageID++
	return messageID
}

// NETCONF constants
const (
	NetconfBase10   = "urn:ietf:params:netconf:base:1.0"
	NetconfBase11   = "urn:ietf:params:netconf:base:1.1"
	NetconfFrameEnd = "]]>]]>"

	CapWritableRunning = "urn:ietf:params:netconf:capability:writable-running:1.0"
	CapCandidate       = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapRollback        = "urn:ietf:params:netconf:capability:rollback-on-error:1.0"
	CapValidate        = "urn:ietf:params:netconf:capability:validate:1.0"
)

// Driver implements the types.Driver interface for a Polatis-class optical
// circuit switch using NETCONF/YANG over SSH.
type Driver struct {
	config       *types.SwitchConfig
	log          *zap.Logger
	sshClient    *ssh.Client
	session      *ssh.Session
	stdin        *netconfWriter
	stdout       *netconfReader
	connected    bool
	capabilities []string
	sessionID    string
	mu           sync.Mutex
}

// netconfWriter wraps SSH stdin for NETCONF framing
type netconfWriter struct {
	writer   interface{ Write([]byte) (int, error) }
	useChunk bool // NETCONF 1.1 chunked framing
}

func (w *netconfWriter) Write(data []byte) (int, error) {
	if w.useChunk {
		chunk := fmt.Sprintf("\n#%d\n%s\n##\n", len(data), string(data))
		return w.writer.Write([]byte(chunk))
	}
	// NETCONF 1.0 EOM framing
	return w.writer.Write(append(data, []byte(NetconfFrameEnd)...))
}

// netconfReader wraps SSH stdout for NETCONF framing
type netconfReader struct {
	reader   interface{ Read([]byte) (int, error) }
	useChunk bool
}

// ReadMessage reads a complete NETCONF message
func (r *netconfReader) ReadMessage() ([]byte, error) {
	buf := make([]byte, 64*1024)
	var message []byte

	for {
		n, err := r.reader.Read(buf)
		if err != nil {
			return nil, err
		}

		message = append(message, buf[:n]...)

		// End-of-message marker (NETCONF 1.0)
		if !r.useChunk && strings.Contains(string(message), NetconfFrameEnd) {
			msg := strings.TrimSuffix(string(message), NetconfFrameEnd)
			return []byte(strings.TrimSpace(msg)), nil
		}

		// NETCONF 1.1 chunked framing
		if r.useChunk && strings.Contains(string(message), "\n##\n") {
			return parseChunkedMessage(message)
		}
	}
}

// parseChunkedMessage reassembles NETCONF 1.1 chunked framing:
// ("\n#" size "\n" chunk)* "\n##\n". Large replies arrive as several
// size-prefixed chunks that must be concatenated in order.
func parseChunkedMessage(data []byte) ([]byte, error) {
	str := string(data)
	var sb strings.Builder
	for {
		start := strings.Index(str, "\n#")
		if start < 0 {
			return nil, fmt.Errorf("malformed chunked message: missing frame header")
		}
		str = str[start+2:]
		if strings.HasPrefix(str, "#") {
			// \n##\n end-of-chunks marker
			return []byte(sb.String()), nil
		}
		nl := strings.Index(str, "\n")
		if nl < 0 {
			return nil, fmt.Errorf("malformed chunked message: truncated chunk size")
		}
		size, err := strconv.Atoi(str[:nl])
		if err != nil || size <= 0 || nl+1+size > len(str) {
			return nil, fmt.Errorf("malformed chunked message: bad chunk size %q", str[:nl])
		}
		sb.WriteString(str[nl+1 : nl+1+size])
		str = str[nl+1+size:]
	}
}

// Option configures the driver
type Option func(*Driver)

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Driver) { d.log = log }
}

// NewDriver creates a new NETCONF driver for an optical switch
func NewDriver(config *types.SwitchConfig, opts ...Option) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	// Default port for NETCONF
	if config.Port == 0 {
		config.Port = 830
	}

	// Default timeout
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	d := &Driver{
		config: config,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Connect establishes a NETCONF session over SSH
func (d *Driver) Connect(ctx context.Context, config *types.SwitchConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if config != nil {
		d.config = config
	}
	if d.connected {
		return nil
	}

	sshConfig := &ssh.ClientConfig{
		User: d.config.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.config.Password),
		},
		Timeout: d.config.Timeout,
		// Lab switches sit on an isolated management network and rotate
		// host keys on factory reset.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}

	addr := fmt.Sprintf("%s:%d", d.config.Address, d.config.Port)
	d.log.Info("connecting NETCONF session", zap.String("addr", addr))

	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("SSH dial failed: %w", err)
	}
	d.sshClient = client

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("SSH session failed: %w", err)
	}
	d.session = session

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdin pipe failed: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdout pipe failed: %w", err)
	}

	d.stdin = &netconfWriter{writer: stdin, useChunk: false}
	d.stdout = &netconfReader{reader: stdout, useChunk: false}

	if err := session.RequestSubsystem("netconf"); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("NETCONF subsystem request failed: %w", err)
	}

	if err := d.exchangeHello(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("NETCONF hello exchange failed: %w", err)
	}

	d.connected = true
	d.log.Info("NETCONF session established",
		zap.String("session_id", d.sessionID),
		zap.Int("capabilities", len(d.capabilities)))
	return nil
}

// exchangeHello performs NETCONF hello exchange
func (d *Driver) exchangeHello() error {
	serverHello, err := d.stdout.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server hello: %w", err)
	}

	d.capabilities, d.sessionID = parseHello(serverHello)

	// Switch to chunked framing when the server speaks NETCONF 1.1
	for _, cap := range d.capabilities {
		if strings.Contains(cap, "base:1.1") {
			d.stdin.useChunk = true
			d.stdout.useChunk = true
			break
		}
	}

	clientHello := `<?xml version="1.0" encoding="UTF-8"?>
<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>urn:ietf:params:netconf:base:1.0</capability>
    <capability>urn:ietf:params:netconf:base:1.1</capability>
    <capability>urn:ietf:params:netconf:capability:writable-running:1.0</capability>
    <capability>urn:ietf:params:netconf:capability:rollback-on-error:1.0</capability>
    <capability>urn:ietf:params:netconf:capability:validate:1.0</capability>
  </capabilities>
</hello>`

	if _, err := d.stdin.Write([]byte(clientHello)); err != nil {
		return fmt.Errorf("failed to send client hello: %w", err)
	}

	return nil
}

// parseHello extracts capabilities and session ID from hello message
func parseHello(data []byte) ([]string, string) {
	type Hello struct {
		XMLName      xml.Name `xml:"hello"`
		SessionID    string   `xml:"session-id"`
		Capabilities struct {
			Capability []string `xml:"capability"`
		} `xml:"capabilities"`
	}

	var hello Hello
	if err := xml.Unmarshal(data, &hello); err != nil {
		return nil, ""
	}
	return hello.Capabilities.Capability, hello.SessionID
}

// Disconnect closes the NETCONF session
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		closeSession := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rpc message-id="%d" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <close-session/>
</rpc>`, nextMessageID())

		d.stdin.Write([]byte(closeSession)) //nolint:errcheck // best effort
		d.log.Info("NETCONF session closed", zap.String("session_id", d.sessionID))
	}

	if d.session != nil {
		d.session.Close()
	}
	if d.sshClient != nil {
		d.sshClient.Close()
	}

	d.connected = false
	return nil
}

// IsConnected returns true if connected
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// GetCapabilities returns the server's NETCONF capabilities
func (d *Driver) GetCapabilities() []string {
	return d.capabilities
}

// HasCapability checks if the server supports a specific capability
func (d *Driver) HasCapability(cap string) bool {
	for _, c := range d.capabilities {
		if strings.Contains(c, cap) {
			return true
		}
	}
	return false
}

// RPC sends a NETCONF RPC and returns the response. The reply wait is
// bounded by ctx and the configured timeout; a switch that accepts the
// session but never replies must not wedge the driver.
func (d *Driver) RPC(ctx context.Context, operation string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, fmt.Errorf("not connected to switch")
	}

	msgID := nextMessageID()
	rpc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rpc message-id="%d" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
%s
</rpc>`, msgID, operation)

	d.log.Debug("NETCONF RPC", zap.Uint64("message_id", msgID), zap.String("operation", operation))

	if _, err := d.stdin.Write([]byte(rpc)); err != nil {
		return nil, fmt.Errorf("failed to send RPC: %w", err)
	}

	type readResult struct {
		data []byte
		err  error
	}
	replyCh := make(chan readResult, 1)
	stdout := d.stdout
	go func() {
		data, err := stdout.ReadMessage()
		replyCh <- readResult{data, err}
	}()

	timeout := d.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var reply []byte
	select {
	case r := <-replyCh:
		if r.err != nil {
			return nil, fmt.Errorf("failed to read RPC reply: %w", r.err)
		}
		reply = r.data
	case <-ctx.Done():
		// A reply arriving after we stop reading would desync the
		// framing; the session cannot be reused.
		d.connected = false
		d.log.Warn("NETCONF RPC abandoned", zap.Uint64("message_id", msgID), zap.Error(ctx.Err()))
		return nil, fmt.Errorf("RPC %d abandoned: %w", msgID, ctx.Err())
	case <-time.After(timeout):
		d.connected = false
		d.log.Warn("NETCONF RPC timed out",
			zap.Uint64("message_id", msgID), zap.Duration("timeout", timeout))
		return nil, fmt.Errorf("no reply to RPC %d after %v: %w", msgID, timeout, context.DeadlineExceeded)
	}

	if strings.Contains(string(reply), "<rpc-error>") {
		return reply, fmt.Errorf("RPC error: %s", extractRPCError(reply))
	}

	return reply, nil
}

// extractRPCError extracts error details from an rpc-error response
func extractRPCError(data []byte) string {
	type RPCError struct {
		XMLName      xml.Name `xml:"rpc-error"`
		ErrorType    string   `xml:"error-type"`
		ErrorTag     string   `xml:"error-tag"`
		ErrorMessage string   `xml:"error-message"`
	}
	type RPCReply struct {
		XMLName xml.Name   `xml:"rpc-reply"`
		Errors  []RPCError `xml:"rpc-error"`
	}

	var reply RPCReply
	if err := xml.Unmarshal(data, &reply); err == nil && len(reply.Errors) > 0 {
		e := reply.Errors[0]
		return fmt.Sprintf("%s: %s - %s", e.ErrorType, e.ErrorTag, e.ErrorMessage)
	}
	return string(data)
}

// Get performs NETCONF get with an optional subtree filter
func (d *Driver) Get(ctx context.Context, filter string) ([]byte, error) {
	var operation string
	if filter != "" {
		operation = fmt.Sprintf(`<get>
  <filter type="subtree">
    %s
  </filter>
</get>`, filter)
	} else {
		operation = "<get/>"
	}
	return d.RPC(ctx, operation)
}

// EditConfig performs NETCONF edit-config on the running datastore. The
// config document may contain multiple edits; the switch applies them as
// one configuration change.
func (d *Driver) EditConfig(ctx context.Context, config string) error {
	operation := fmt.Sprintf(`<edit-config>
  <target>
    <running/>
  </target>
  <config>
    %s
  </config>
</edit-config>`, config)

	_, err := d.RPC(ctx, operation)
	return err
}

// Dispatch sends a raw custom RPC (used for shutter control)
func (d *Driver) Dispatch(ctx context.Context, rpcBody string) ([]byte, error) {
	return d.RPC(ctx, rpcBody)
}

// HealthCheck performs a minimal get as a liveness probe
func (d *Driver) HealthCheck(ctx context.Context) error {
	if !d.IsConnected() {
		return fmt.Errorf("not connected to switch")
	}
	_, err := d.Get(ctx, crossConnectsFilter())
	return err
}

var _ types.Driver = (*Driver)(nil)
