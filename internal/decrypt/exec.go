package decrypt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

const (
	defaultExecTimeout = 30 * time.Second

	// pipeWaitDelay bounds how long Wait may block on the output pipes
	// after the decryptor exits or is killed. A child the decryptor
	// spawned can inherit the pipes and hold them open indefinitely.
	pipeWaitDelay = 1 * time.Second
)

// ExecCapability runs a decryptor binary for every request. The binary is
// expected to print a single JSON transaction to stdout on success and exit
// non-zero when the transaction does not match the key.
type ExecCapability struct {
	binPath string
	timeout time.Duration
}

// ExecOption configures an ExecCapability.
type ExecOption func(*ExecCapability)

// WithExecTimeout bounds how long a single invocation may run.
func WithExecTimeout(d time.Duration) ExecOption {
	return func(e *ExecCapability) {
		e.timeout = d
	}
}

// NewExecCapability wraps the decryptor binary at binPath.
func NewExecCapability(binPath string, opts ...ExecOption) *ExecCapability {
	e := &ExecCapability{
		binPath: binPath,
		timeout: defaultExecTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decrypt shells out to the decryptor. The viewing key is passed as an
// argument and never written anywhere else; command failures report only
// stderr, never the argv.
func (e *ExecCapability) Decrypt(ctx context.Context, req Request) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binPath,
		"--txid", req.TxID,
		"--ufvk", req.UFVK,
		"--raw-tx", req.RawHex,
		"--height", strconv.FormatInt(req.Height, 10),
		"--format", "json",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decryptor exited: %w (stderr: %s)", err, truncate(stderr.String(), 256))
	}

	var tx Transaction
	if err := json.Unmarshal(stdout.Bytes(), &tx); err != nil {
		return nil, fmt.Errorf("decode decryptor output: %w", err)
	}
	return &tx, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
