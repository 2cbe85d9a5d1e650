package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
	"github.com/KilimcininKorOglu/obacore/internal/server"
)

// defaultRequestTimeout bounds how long a command waits for a response.
const defaultRequestTimeout = 30 * time.Second

var errRequestTimeout = errors.New("timed out waiting for a response")

// ldifSink is a server.Sink printing search entries in LDIF and handing
// final results to the waiting command.
type ldifSink struct {
	mu      sync.Mutex
	out     io.Writer
	entries int
	results chan ldap.LDAPResult
}

func newLDIFSink(out io.Writer) *ldifSink {
	return &ldifSink{out: out, results: make(chan ldap.LDAPResult, 8)}
}

func (s *ldifSink) WriteResult(_ int64, _ operation.Kind, result ldap.LDAPResult, _ []ldap.Control) error {
	s.results <- result
	return nil
}

func (s *ldifSink) WriteEntry(_ int64, entry *ldap.Entry, _ []ldap.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries++
	writeLDIF(s.out, entry)
	return nil
}

func (s *ldifSink) WriteReference(_ int64, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range urls {
		fmt.Fprintf(s.out, "# refldap: %s\n", u)
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *ldifSink) Close(string, bool, string) error { return nil }

func (s *ldifSink) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// writeLDIF prints entry with its attributes in name order.
func writeLDIF(w io.Writer, entry *ldap.Entry) {
	fmt.Fprintf(w, "dn: %s\n", entry.DN)
	for _, name := range entry.AttributeNames() {
		values := append([]string(nil), entry.Attributes[name]...)
		sort.Strings(values)
		if len(values) == 0 {
			fmt.Fprintf(w, "%s:\n", name)
		}
		for _, v := range values {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}

// session is one in-process client connection.
type session struct {
	conn    *server.Connection
	sink    *ldifSink
	nextID  int64
	timeout time.Duration
}

func openSession(s *stack, out io.Writer) (*session, error) {
	sink := newLDIFSink(out)
	conn, err := s.server.Accept(sink)
	if err != nil {
		return nil, err
	}
	return &session{conn: conn, sink: sink, timeout: defaultRequestTimeout}, nil
}

// do sends one request and waits for its final result.
func (s *session) do(request interface{}) (ldap.LDAPResult, error) {
	s.nextID++
	if err := s.conn.Handle(s.nextID, nil, request); err != nil {
		return ldap.LDAPResult{}, err
	}

	select {
	case r := <-s.sink.results:
		return r, nil
	case <-time.After(s.timeout):
		return ldap.LDAPResult{}, errRequestTimeout
	}
}

// bind authenticates the session unless bindDN is empty.
func (s *session) bind(bindDN, password string) error {
	if bindDN == "" {
		return nil
	}
	r, err := s.do(&ldap.BindRequest{
		Version:        3,
		Name:           bindDN,
		AuthMethod:     ldap.AuthMethodSimple,
		SimplePassword: []byte(password),
	})
	if err != nil {
		return err
	}
	return resultError(r)
}

func (s *session) close() {
	s.conn.Disconnect("client unbind", false, "")
}

// resultError converts a non-success result into an error.
func resultError(r ldap.LDAPResult) error {
	if r.ResultCode == ldap.ResultSuccess {
		return nil
	}
	msg := r.ResultCode.String()
	if r.DiagnosticMessage != "" {
		msg += ": " + r.DiagnosticMessage
	}
	if r.MatchedDN != "" {
		msg += " (matched " + r.MatchedDN + ")"
	}
	return errors.New(msg)
}
