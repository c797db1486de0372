// Package winrm executes PowerShell scripts on remote Windows targets
// over WinRM. It caches authenticated sessions per host, works around
// the cmd.exe 8191 character limit by shipping long scripts as chunked
// base64 temp files, and retries failed transport attempts with linear
// backoff.
package winrm

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	gowinrm "github.com/masterzen/winrm"

	"github.com/osiriscare/winaudit/internal/pshell"
)

const (
	sessionMaxAge     = 300 * time.Second
	inlineScriptLimit = 2000 // chars before switching to temp file mode
	chunkSize         = 6000 // base64 chunk size safe for cmd.exe echo
	defaultTimeout    = 120  // seconds, WinRM operation timeout
	defaultRetryDelay = 10 * time.Second
)

// Target describes a Windows machine to execute scripts on.
type Target struct {
	Hostname    string
	Port        int // 0 picks 5985 or 5986 based on UseSSL
	Username    string
	Password    string
	UseSSL      bool
	VerifySSL   bool
	TimeoutSecs int // 0 picks defaultTimeout
}

// Options control retry behavior for a single Run.
type Options struct {
	Retries    int
	RetryDelay time.Duration
}

// Result is the outcome of one script execution. A nonzero exit code is
// not an error at this layer; callers decide what exit codes mean.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Attempts int
}

type cachedSession struct {
	client    *gowinrm.Client
	createdAt time.Time
}

// Executor manages WinRM sessions and script execution.
type Executor struct {
	sessions map[string]*cachedSession
	mu       sync.Mutex
}

func NewExecutor() *Executor {
	return &Executor{sessions: make(map[string]*cachedSession)}
}

// Run executes a PowerShell script on the target. Transport failures are
// retried up to opts.Retries times with linearly increasing delay; the
// cached session is invalidated before each retry so auth and connection
// problems get a fresh start.
func (e *Executor) Run(ctx context.Context, target *Target, script string, opts Options) (*Result, error) {
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * delay
			log.Printf("[winrm] Retry %d/%d for %s in %s", attempt, opts.Retries, target.Hostname, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stdout, stderr, exitCode, err := e.executeOnce(target, script)
		if err != nil {
			lastErr = err
			log.Printf("[winrm] Execution failed on %s: %v", target.Hostname, err)
			e.InvalidateSession(target.Hostname)
			continue
		}

		return &Result{
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: exitCode,
			Duration: time.Since(start),
			Attempts: attempt + 1,
		}, nil
	}

	return nil, fmt.Errorf("execution on %s failed after %d attempts: %w", target.Hostname, opts.Retries+1, lastErr)
}

func (e *Executor) executeOnce(target *Target, script string) (string, string, int, error) {
	client, err := e.getSession(target)
	if err != nil {
		return "", "", -1, err
	}

	if len(script) > inlineScriptLimit {
		return e.executeViaTempFile(client, script)
	}
	return e.executeInline(client, script)
}

// executeInline runs a short PowerShell script directly.
func (e *Executor) executeInline(client *gowinrm.Client, script string) (string, string, int, error) {
	shell, err := client.CreateShell()
	if err != nil {
		return "", "", -1, fmt.Errorf("create shell: %w", err)
	}
	defer shell.Close()

	encoded := pshell.Encode(script)
	cmd, err := shell.Execute("powershell.exe", "-NoProfile", "-NonInteractive", "-EncodedCommand", encoded)
	if err != nil {
		return "", "", -1, fmt.Errorf("execute: %w", err)
	}
	defer cmd.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	go io.Copy(&stdoutBuf, cmd.Stdout)
	go io.Copy(&stderrBuf, cmd.Stderr)

	cmd.Wait()

	stdout := strings.TrimSpace(stdoutBuf.String())
	stderr := strings.TrimSpace(stderrBuf.String())

	return stdout, stderr, cmd.ExitCode(), nil
}

// executeViaTempFile handles the cmd.exe 8191 character limit by writing
// the script to a temp file via chunked base64 echo commands.
func (e *Executor) executeViaTempFile(client *gowinrm.Client, script string) (string, string, int, error) {
	scriptHash := fmt.Sprintf("%x", sha256.Sum256([]byte(script)))[:8]
	tempB64 := fmt.Sprintf(`C:\Windows\Temp\wa_%s.b64`, scriptHash)
	tempPS1 := fmt.Sprintf(`C:\Windows\Temp\wa_%s.ps1`, scriptHash)

	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	chunks := splitString(encoded, chunkSize)

	shell, err := client.CreateShell()
	if err != nil {
		return "", "", -1, fmt.Errorf("create shell: %w", err)
	}
	defer shell.Close()

	for i, chunk := range chunks {
		op := ">"
		if i > 0 {
			op = ">>"
		}
		cmdStr := fmt.Sprintf(`echo %s%s"%s"`, chunk, op, tempB64)
		cmd, err := shell.Execute("cmd.exe", "/c", cmdStr)
		if err != nil {
			return "", "", -1, fmt.Errorf("write chunk %d: %w", i, err)
		}
		cmd.Wait()
		cmd.Close()
		if cmd.ExitCode() != 0 {
			return "", "", -1, fmt.Errorf("write chunk %d failed: exit %d", i, cmd.ExitCode())
		}
	}

	// Decode base64, write PS1, execute, cleanup.
	decodeAndRun := fmt.Sprintf(
		`$r=(Get-Content '%s' -Raw) -replace '\s',''; `+
			`$b=[Convert]::FromBase64String($r); `+
			`[IO.File]::WriteAllText('%s',[Text.Encoding]::UTF8.GetString($b)); `+
			`Remove-Item '%s' -Force -EA SilentlyContinue; `+
			`try { & '%s' } finally { Remove-Item '%s' -Force -EA SilentlyContinue }`,
		tempB64, tempPS1, tempB64, tempPS1, tempPS1,
	)

	encodedCmd := pshell.Encode(decodeAndRun)
	cmd, err := shell.Execute("powershell.exe", "-NoProfile", "-NonInteractive", "-EncodedCommand", encodedCmd)
	if err != nil {
		return "", "", -1, fmt.Errorf("execute temp file: %w", err)
	}
	defer cmd.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	go io.Copy(&stdoutBuf, cmd.Stdout)
	go io.Copy(&stderrBuf, cmd.Stderr)

	cmd.Wait()

	stdout := strings.TrimSpace(stdoutBuf.String())
	stderr := strings.TrimSpace(stderrBuf.String())

	return stdout, stderr, cmd.ExitCode(), nil
}

// getSession returns a cached or new WinRM session.
func (e *Executor) getSession(target *Target) (*gowinrm.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.sessions[target.Hostname]; ok {
		if time.Since(cached.createdAt) < sessionMaxAge {
			return cached.client, nil
		}
		log.Printf("[winrm] Session expired for %s, refreshing", target.Hostname)
	}

	port := target.Port
	if port == 0 {
		if target.UseSSL {
			port = 5986
		} else {
			port = 5985
		}
	}

	timeout := target.TimeoutSecs
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint := gowinrm.NewEndpoint(target.Hostname, port, target.UseSSL, !target.VerifySSL, nil, nil, nil, time.Duration(timeout)*time.Second)

	// NTLM auth; Basic is rarely enabled in domain environments.
	params := gowinrm.NewParameters(fmt.Sprintf("PT%dS", timeout), "en-US", 153600)
	params.TransportDecorator = func() gowinrm.Transporter { return &gowinrm.ClientNTLM{} }

	client, err := gowinrm.NewClientWithParameters(endpoint, target.Username, target.Password, params)
	if err != nil {
		return nil, fmt.Errorf("create WinRM client for %s: %w", target.Hostname, err)
	}

	e.sessions[target.Hostname] = &cachedSession{
		client:    client,
		createdAt: time.Now(),
	}

	log.Printf("[winrm] New session for %s:%d (ssl=%v)", target.Hostname, port, target.UseSSL)
	return client, nil
}

// InvalidateSession removes a cached session for a host.
func (e *Executor) InvalidateSession(hostname string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, hostname)
	log.Printf("[winrm] Invalidated session for %s", hostname)
}

// SessionCount returns the number of cached sessions.
func (e *Executor) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Shell adapts the executor to the pshell.Runner interface for a single
// target, so remote collectors can run scripts the same way local ones
// do. A nonzero exit code becomes an error at this boundary.
func (e *Executor) Shell(target *Target, opts Options) pshell.Runner {
	return &shellRunner{exec: e, target: target, opts: opts}
}

type shellRunner struct {
	exec   *Executor
	target *Target
	opts   Options
}

func (r *shellRunner) Run(ctx context.Context, script string) (string, error) {
	res, err := r.exec.Run(ctx, r.target, script, r.opts)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		detail := res.Stderr
		if detail == "" {
			detail = res.Stdout
		}
		return "", fmt.Errorf("remote script exited %d on %s: %s", res.ExitCode, r.target.Hostname, truncate(detail, 300))
	}
	return res.Stdout, nil
}

func splitString(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
