package ascii

import (
	"bufio"
	"context"
	"net"
	"time"
)

// conn is a single connection to one server. The pool hands a conn to at most
// one caller at a time, so no locking is needed here.
type conn struct {
	addr    string
	nc      net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	timeout time.Duration
}

func dialConn(ctx context.Context, addr string, cfg Config) (*conn, error) {
	dial := cfg.Dial
	if dial == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}

	nc, err := dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(!cfg.Nagle)
	}

	return &conn{
		addr:    addr,
		nc:      nc,
		reader:  bufio.NewReader(nc),
		writer:  bufio.NewWriter(nc),
		timeout: cfg.SocketTimeout,
	}, nil
}

// touch arms the read/write deadline for the next request-response cycle.
func (c *conn) touch() {
	if c.timeout > 0 {
		_ = c.nc.SetDeadline(time.Now().Add(c.timeout))
	}
}

func (c *conn) flush() error {
	return c.writer.Flush()
}

// readLine reads one CRLF-terminated response line without the terminator.
func (c *conn) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = stripCRLF(line)
	return line, nil
}

func (c *conn) close() error {
	return c.nc.Close()
}

func stripCRLF(line string) string {
	if n := len(line); n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
		return line[:n-2]
	}
	if n := len(line); n >= 1 && line[n-1] == '\n' {
		return line[:n-1]
	}
	return line
}
