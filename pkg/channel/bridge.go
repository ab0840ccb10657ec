package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pion/logging"
)

// Bridge is a SecureChannel backed by an external helper that owns the
// actual cryptographic sessions. Requests and responses are newline
// delimited JSON objects exchanged over a byte stream. Requests carry an id
// and the helper may answer them in any order, so a slow call for one
// camera does not hold up calls for others.
//
// The helper reports results the way native bindings do (booleans and
// sentinel strings). Bridge converts them to errors and Decoded values so
// nothing past this boundary sees sentinels.
type Bridge struct {
	conn io.ReadWriteCloser
	dec  *json.Decoder
	log  logging.LeveledLogger

	writeMu sync.Mutex
	enc     *json.Encoder

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan bridgeResponse
	closed  bool

	done       chan struct{}
	readerDone chan struct{}
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Conn is the stream to the helper. Required.
	Conn io.ReadWriteCloser

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type bridgeParams struct {
	ServerAddress   string `json:"server_address,omitempty"`
	RelayToken      string `json:"relay_token,omitempty"`
	StorageDir      string `json:"storage_dir,omitempty"`
	Camera          string `json:"camera,omitempty"`
	FirstTime       bool   `json:"first_time,omitempty"`
	UserCredentials []byte `json:"user_credentials,omitempty"`
	Token           string `json:"token,omitempty"`
	CameraIP        string `json:"camera_ip,omitempty"`
	Secret          []byte `json:"secret,omitempty"`
	Payload         []byte `json:"payload,omitempty"`
	Length          int    `json:"length,omitempty"`
}

type bridgeRequest struct {
	ID     uint64       `json:"id"`
	Method string       `json:"method"`
	Params bridgeParams `json:"params"`
}

type bridgeResponse struct {
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewBridge creates a Bridge over an established stream.
func NewBridge(config BridgeConfig) (*Bridge, error) {
	if config.Conn == nil {
		return nil, errors.New("channel: bridge connection is required")
	}

	b := &Bridge{
		conn:       config.Conn,
		enc:        json.NewEncoder(config.Conn),
		dec:        json.NewDecoder(config.Conn),
		pending:    make(map[uint64]chan bridgeResponse),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("channel-bridge")
	}
	go b.readLoop()
	return b, nil
}

// ProcessConfig configures a helper process started by NewProcessBridge.
type ProcessConfig struct {
	// Path is the helper executable. Required.
	Path string

	// Args are passed to the helper.
	Args []string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// processConn joins a helper's stdin and stdout into one stream.
// Close shuts stdin and waits for the helper to exit.
type processConn struct {
	io.Reader
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

func (p *processConn) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *processConn) Close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

// NewProcessBridge starts the helper and returns a Bridge talking to it over
// its standard streams. The helper is killed when ctx is cancelled.
func NewProcessBridge(ctx context.Context, config ProcessConfig) (*Bridge, error) {
	if config.Path == "" {
		return nil, errors.New("channel: helper path is required")
	}

	cmd := exec.CommandContext(ctx, config.Path, config.Args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("channel: helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("channel: helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("channel: start helper: %w", err)
	}

	return NewBridge(BridgeConfig{
		Conn:          &processConn{Reader: stdout, stdin: stdin, cmd: cmd},
		LoggerFactory: config.LoggerFactory,
	})
}

// readLoop routes each response to the call waiting for its id. A broken
// stream closes the bridge.
func (b *Bridge) readLoop() {
	defer close(b.readerDone)
	for {
		var resp bridgeResponse
		if err := b.dec.Decode(&resp); err != nil {
			b.shutdown(err)
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		delete(b.pending, resp.ID)
		b.mu.Unlock()

		if !ok {
			// The caller gave up on this request.
			if b.log != nil {
				b.log.Debugf("dropping response for abandoned request %d", resp.ID)
			}
			continue
		}
		ch <- resp
	}
}

// call sends one request and waits for its response, ctx cancellation or
// the bridge closing, whichever comes first.
func (b *Bridge) call(ctx context.Context, method string, params bridgeParams) (bridgeResponse, error) {
	if err := ctx.Err(); err != nil {
		return bridgeResponse{}, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return bridgeResponse{}, ErrClosed
	}
	b.nextID++
	id := b.nextID
	ch := make(chan bridgeResponse, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	req := bridgeRequest{ID: id, Method: method, Params: params}
	b.writeMu.Lock()
	err := b.enc.Encode(&req)
	b.writeMu.Unlock()
	if err != nil {
		b.forget(id)
		b.shutdown(err)
		return bridgeResponse{}, fmt.Errorf("%w: %v", ErrClosed, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, fmt.Errorf("channel: %s: %s", method, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		b.forget(id)
		return bridgeResponse{}, ctx.Err()
	case <-b.done:
		return bridgeResponse{}, ErrClosed
	}
}

func (b *Bridge) forget(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// shutdown closes the bridge once. A non-nil cause is logged as a stream
// failure. It reports whether this call closed the bridge and the error
// from closing the stream.
func (b *Bridge) shutdown(cause error) (bool, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	if cause != nil && b.log != nil {
		b.log.Errorf("helper stream failed: %v", cause)
	}
	return true, b.conn.Close()
}

func (b *Bridge) okCall(ctx context.Context, method string, params bridgeParams, failure error) error {
	resp, err := b.call(ctx, method, params)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", failure, method)
	}
	return nil
}

// Initialize implements SecureChannel.
func (b *Bridge) Initialize(ctx context.Context, p InitParams) error {
	return b.okCall(ctx, MethodInitialize, bridgeParams{
		ServerAddress:   p.ServerAddress,
		RelayToken:      p.RelayToken,
		StorageDir:      p.StorageDir,
		Camera:          p.CameraName,
		FirstTime:       p.FirstTime,
		UserCredentials: p.UserCredentials,
	}, ErrInitialize)
}

// Decode implements SecureChannel.
func (b *Bridge) Decode(ctx context.Context, camera string, payload []byte) (Decoded, error) {
	resp, err := b.call(ctx, MethodDecode, bridgeParams{Camera: camera, Payload: payload})
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromSentinel(resp.Text)
}

// UpdateToken implements SecureChannel.
func (b *Bridge) UpdateToken(ctx context.Context, token, camera string) error {
	return b.okCall(ctx, MethodUpdateToken, bridgeParams{Token: token, Camera: camera}, ErrOperation)
}

// AddCamera implements SecureChannel.
func (b *Bridge) AddCamera(ctx context.Context, camera, cameraIP string, secret []byte) error {
	return b.okCall(ctx, MethodAddCamera, bridgeParams{Camera: camera, CameraIP: cameraIP, Secret: secret}, ErrOperation)
}

// Deregister implements SecureChannel. The helper reports no outcome.
func (b *Bridge) Deregister(ctx context.Context, camera string) error {
	_, err := b.call(ctx, MethodDeregister, bridgeParams{Camera: camera})
	return err
}

// Receive implements SecureChannel.
func (b *Bridge) Receive(ctx context.Context, camera string) (string, error) {
	resp, err := b.call(ctx, MethodReceive, bridgeParams{Camera: camera})
	if err != nil {
		return "", err
	}
	if resp.Text == SentinelError {
		return "", fmt.Errorf("%w: %s", ErrOperation, MethodReceive)
	}
	return resp.Text, nil
}

// LivestreamStart implements SecureChannel.
func (b *Bridge) LivestreamStart(ctx context.Context, camera string) error {
	return b.okCall(ctx, MethodLivestreamStart, bridgeParams{Camera: camera}, ErrOperation)
}

// LivestreamRead implements SecureChannel.
func (b *Bridge) LivestreamRead(ctx context.Context, camera string, n int) ([]byte, error) {
	resp, err := b.call(ctx, MethodLivestreamRead, bridgeParams{Camera: camera, Length: n})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// LivestreamEnd implements SecureChannel.
func (b *Bridge) LivestreamEnd(ctx context.Context, camera string) error {
	return b.okCall(ctx, MethodLivestreamEnd, bridgeParams{Camera: camera}, ErrOperation)
}

// Close shuts the stream to the helper. Calls in flight return ErrClosed.
func (b *Bridge) Close() error {
	first, err := b.shutdown(nil)
	if first {
		<-b.readerDone
	}
	return err
}

// Verify Bridge implements SecureChannel.
var _ SecureChannel = (*Bridge)(nil)
