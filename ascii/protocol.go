package ascii

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const crlf = "\r\n"

const maxKeyLength = 250

// validateKey enforces the protocol's key constraints: at most 250 bytes, no
// whitespace or control characters.
func validateKey(key string) error {
	if len(key) == 0 {
		return fmt.Errorf("ascii: empty key")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("ascii: key longer than %d bytes", maxKeyLength)
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return fmt.Errorf("ascii: key contains invalid byte %#x", key[i])
		}
	}
	return nil
}

// exptimeToken renders an expiry for the wire. Zero time means never expire.
// Anything else is sent as an absolute unix timestamp; a timestamp in the
// past makes the server treat the item as already expired.
func exptimeToken(expiry time.Time) int64 {
	if expiry.IsZero() {
		return 0
	}
	return expiry.Unix()
}

// storage runs one of the storage verbs (set, add, replace). The bool result
// reports whether the server stored the value: NOT_STORED and NOT_FOUND are
// how conditional writes lose their condition, not errors.
func (c *conn) storage(verb, key string, value []byte, expiry time.Time) (bool, error) {
	c.touch()

	fmt.Fprintf(c.writer, "%s %s 0 %d %d%s", verb, key, exptimeToken(expiry), len(value), crlf)
	c.writer.Write(value)
	c.writer.WriteString(crlf)
	if err := c.flush(); err != nil {
		return false, err
	}

	line, err := c.readLine()
	if err != nil {
		return false, err
	}
	switch line {
	case "STORED":
		return true, nil
	case "NOT_STORED", "EXISTS", "NOT_FOUND":
		return false, nil
	default:
		return false, replyError(line)
	}
}

// get fetches one or more keys in a single round trip. Missing keys are
// simply absent from the result.
func (c *conn) get(keys []string) (map[string][]byte, error) {
	c.touch()

	c.writer.WriteString("get ")
	c.writer.WriteString(strings.Join(keys, " "))
	c.writer.WriteString(crlf)
	if err := c.flush(); err != nil {
		return nil, err
	}

	found := make(map[string][]byte, len(keys))
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "END" {
			return found, nil
		}

		key, size, err := parseValueHeader(line)
		if err != nil {
			return nil, err
		}

		// Value block is followed by its own CRLF.
		block := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, block); err != nil {
			return nil, err
		}
		if string(block[size:]) != crlf {
			return nil, fmt.Errorf("%w: value block not CRLF-terminated", ErrMalformedResponse)
		}
		found[key] = block[:size]
	}
}

// parseValueHeader parses "VALUE <key> <flags> <bytes>[ <cas>]".
func parseValueHeader(line string) (key string, size int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "VALUE" {
		return "", 0, replyError(line)
	}
	size, err = strconv.Atoi(fields[3])
	if err != nil || size < 0 {
		return "", 0, fmt.Errorf("%w: bad value size in %q", ErrMalformedResponse, line)
	}
	return fields[1], size, nil
}

// delete removes a key. Deleting an absent key is not an error.
func (c *conn) delete(key string) error {
	c.touch()

	fmt.Fprintf(c.writer, "delete %s%s", key, crlf)
	if err := c.flush(); err != nil {
		return err
	}

	line, err := c.readLine()
	if err != nil {
		return err
	}
	switch line {
	case "DELETED", "NOT_FOUND":
		return nil
	default:
		return replyError(line)
	}
}

// arith runs incr or decr. The server answers an absent key with the
// NOT_FOUND sentinel instead of a number; that is reported as found=false.
func (c *conn) arith(verb, key string, delta uint64) (uint64, bool, error) {
	c.touch()

	fmt.Fprintf(c.writer, "%s %s %d%s", verb, key, delta, crlf)
	if err := c.flush(); err != nil {
		return 0, false, err
	}

	line, err := c.readLine()
	if err != nil {
		return 0, false, err
	}
	if line == "NOT_FOUND" {
		return 0, false, nil
	}
	value, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, false, replyError(line)
	}
	return value, true, nil
}

func (c *conn) flushAll() error {
	c.touch()

	c.writer.WriteString("flush_all")
	c.writer.WriteString(crlf)
	if err := c.flush(); err != nil {
		return err
	}

	line, err := c.readLine()
	if err != nil {
		return err
	}
	if line != "OK" {
		return replyError(line)
	}
	return nil
}

// stats reads the default server statistics block.
func (c *conn) stats() (map[string]string, error) {
	c.touch()

	c.writer.WriteString("stats")
	c.writer.WriteString(crlf)
	if err := c.flush(); err != nil {
		return nil, err
	}

	metrics := make(map[string]string)
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if line == "END" {
			return metrics, nil
		}
		name, value, ok := strings.Cut(strings.TrimPrefix(line, "STAT "), " ")
		if !strings.HasPrefix(line, "STAT ") || !ok {
			return nil, replyError(line)
		}
		metrics[name] = value
	}
}

// version is used as the alive check: any server that answers is alive.
func (c *conn) version() error {
	c.touch()

	c.writer.WriteString("version")
	c.writer.WriteString(crlf)
	if err := c.flush(); err != nil {
		return err
	}

	line, err := c.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "VERSION ") {
		return replyError(line)
	}
	return nil
}

// replyError classifies an unexpected response line. CLIENT_ERROR and
// SERVER_ERROR leave the connection in a known state; anything else means we
// lost protocol sync and the connection must be dropped.
func replyError(line string) error {
	if msg, ok := strings.CutPrefix(line, "CLIENT_ERROR "); ok {
		return &ServerError{Message: msg}
	}
	if msg, ok := strings.CutPrefix(line, "SERVER_ERROR "); ok {
		return &ServerError{Message: msg}
	}
	return fmt.Errorf("%w: %q", ErrMalformedResponse, line)
}

// recoverable reports whether the connection can be reused after err.
func recoverable(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
