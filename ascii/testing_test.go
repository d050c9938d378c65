package ascii

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// testServer is a minimal in-process memcached speaking just enough of the
// text protocol for the client tests.
type testServer struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]testEntry
}

type testEntry struct {
	value  []byte
	expiry time.Time
}

func (e testEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &testServer{ln: ln, data: make(map[string]testEntry)}
	go s.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *testServer) addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *testServer) handle(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "get":
			s.handleGet(writer, fields[1:])
		case "set", "add", "replace":
			if !s.handleStorage(reader, writer, fields) {
				return
			}
		case "delete":
			s.handleDelete(writer, fields[1])
		case "incr", "decr":
			s.handleArith(writer, fields)
		case "flush_all":
			s.mu.Lock()
			s.data = make(map[string]testEntry)
			s.mu.Unlock()
			fmt.Fprint(writer, "OK\r\n")
		case "stats":
			fmt.Fprint(writer, "STAT version 1.6.21\r\nSTAT curr_items 1\r\nSTAT rusage_system 0.25\r\nEND\r\n")
		case "version":
			fmt.Fprint(writer, "VERSION 1.6.21\r\n")
		default:
			fmt.Fprint(writer, "ERROR\r\n")
		}
		writer.Flush()
	}
}

func (s *testServer) lookup(key string) ([]byte, bool) {
	entry, ok := s.data[key]
	if !ok || entry.expired(time.Now()) {
		delete(s.data, key)
		return nil, false
	}
	return entry.value, true
}

func (s *testServer) handleGet(w *bufio.Writer, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if value, ok := s.lookup(key); ok {
			fmt.Fprintf(w, "VALUE %s 0 %d\r\n", key, len(value))
			w.Write(value)
			w.WriteString("\r\n")
		}
	}
	w.WriteString("END\r\n")
}

func (s *testServer) handleStorage(r *bufio.Reader, w *bufio.Writer, fields []string) bool {
	verb, key := fields[0], fields[1]
	exptime, _ := strconv.ParseInt(fields[3], 10, 64)
	size, _ := strconv.Atoi(fields[4])

	block := make([]byte, size+2)
	if _, err := io.ReadFull(r, block); err != nil {
		return false
	}
	value := block[:size]

	var expiry time.Time
	if exptime != 0 {
		expiry = time.Unix(exptime, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.lookup(key)
	if (verb == "add" && exists) || (verb == "replace" && !exists) {
		w.WriteString("NOT_STORED\r\n")
		return true
	}
	s.data[key] = testEntry{value: append([]byte(nil), value...), expiry: expiry}
	w.WriteString("STORED\r\n")
	return true
}

func (s *testServer) handleDelete(w *bufio.Writer, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); !ok {
		w.WriteString("NOT_FOUND\r\n")
		return
	}
	delete(s.data, key)
	w.WriteString("DELETED\r\n")
}

func (s *testServer) handleArith(w *bufio.Writer, fields []string) {
	verb, key := fields[0], fields[1]
	delta, _ := strconv.ParseUint(fields[2], 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.lookup(key)
	if !ok {
		w.WriteString("NOT_FOUND\r\n")
		return
	}

	current, _ := strconv.ParseUint(string(raw), 10, 64)
	if verb == "incr" {
		current += delta
	} else if delta > current {
		current = 0
	} else {
		current -= delta
	}

	entry := s.data[key]
	entry.value = []byte(strconv.FormatUint(current, 10))
	s.data[key] = entry
	fmt.Fprintf(w, "%d\r\n", current)
}

// deadAddr returns an address that refuses connections.
func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func testConfig() Config {
	return Config{
		InitialSize:    1,
		MinSize:        1,
		MaxSize:        4,
		SocketTimeout:  2 * time.Second,
		ConnectTimeout: time.Second,
	}
}
