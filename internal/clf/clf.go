// Package clf parses and formats Common Log Format lines, the collaborator
// the core logpulse package consumes for its Event type. It mirrors the
// Java source's CLF/CLFParser split: Entry is the plain data holder,
// Parse/Entry.String handle the textual round trip.
package clf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marregui/logpulse/internal/logpulse"
)

// HTTPMethod enumerates the request methods a CLF line can carry.
type HTTPMethod string

const (
	MethodGET     HTTPMethod = "GET"
	MethodHEAD    HTTPMethod = "HEAD"
	MethodPOST    HTTPMethod = "POST"
	MethodPUT     HTTPMethod = "PUT"
	MethodPATCH   HTTPMethod = "PATCH"
	MethodDELETE  HTTPMethod = "DELETE"
	MethodOPTIONS HTTPMethod = "OPTIONS"
)

var validMethods = map[HTTPMethod]bool{
	MethodGET: true, MethodHEAD: true, MethodPOST: true, MethodPUT: true,
	MethodPATCH: true, MethodDELETE: true, MethodOPTIONS: true,
}

// Entry is a single parsed CLF log record. It implements
// logpulse.Timestamped so it can flow directly through the Cache/Tailer/
// Dispatcher machinery.
type Entry struct {
	Host      string
	Ident     string
	AuthUser  string
	Timestamp int64
	Method    HTTPMethod
	Resource  string
	Version   string
	Status    int
	Bytes     int64
}

// UTCTimestamp implements logpulse.Timestamped.
func (e Entry) UTCTimestamp() int64 { return e.Timestamp }

// Section returns what precedes the second '/' in Resource, e.g.
// "/pages/create" -> "/pages". Returns "" if Resource has fewer than two
// path segments.
func (e Entry) Section() string {
	i := strings.Index(e.Resource, "/")
	if i == -1 {
		return ""
	}
	j := strings.Index(e.Resource[i+1:], "/")
	if j == -1 {
		return ""
	}
	return e.Resource[i : i+1+j]
}

// String renders e back into CLF text. Parsing the result of String must
// reproduce an equal Entry (the round-trip law the core's L-1 property
// depends on).
func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s [%s] \"%s %s HTTP/%s\" %d %d",
		e.Host, e.Ident, e.AuthUser,
		time.UnixMilli(e.Timestamp).UTC().Format(logpulse.DateTimeLayout),
		e.Method, e.Resource, e.Version,
		e.Status, e.Bytes)
}

// ParseError reports a malformed CLF line, naming which field failed.
type ParseError struct {
	Field string
	Value string
	Line  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("clf: incorrect %s format %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// dateTimeLayouts mirrors the Java source's two accepted input formats: a
// numeric month and a full month name. Both are tried in order; the first
// that parses wins.
var dateTimeLayouts = []string{
	"02/01/2006:15:04:05 -0700",
	"02/January/2006:15:04:05 -0700",
}

func parseDateTime(s string) (int64, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		} else {
			lastErr = err
		}
	}
	return 0, lastErr
}

// state is a field in the CLF grammar, each consumed in sequence by the
// scanner in Parse.
type state int

const (
	stateHost state = iota
	stateIdent
	stateAuthUser
	stateDateTime
	stateRequest
	stateStatus
	stateBytes
	stateEnd
)

func (s state) name() string {
	switch s {
	case stateHost:
		return "host"
	case stateIdent:
		return "ident"
	case stateAuthUser:
		return "authuser"
	case stateDateTime:
		return "datetime"
	case stateRequest:
		return "request"
	case stateStatus:
		return "status"
	case stateBytes:
		return "bytes"
	default:
		return "end"
	}
}

// delimiters for each field: open/close bracket characters, or a plain
// space-delimited token (hasDelims false, close set to ' ').
func (s state) delimiters() (open, close byte, hasDelims bool) {
	switch s {
	case stateDateTime:
		return '[', ']', true
	case stateRequest:
		return '"', '"', true
	default:
		return 0, ' ', false
	}
}

// consumeToken scans line starting at offset for the current state's
// token, returning the index just past its closing delimiter, or, for a
// plain token, the index of the space that ends it (len(line) at the end
// of the line).
func (s state) consumeToken(line string, offset int) (int, error) {
	open, closeCh, hasDelims := s.delimiters()
	i := offset
	if hasDelims {
		if i >= len(line) || line[i] != open {
			got := byte(0)
			if i < len(line) {
				got = line[i]
			}
			return 0, fmt.Errorf("parsing [%s] offset:%d, expected:%c, found:%c", s.name(), offset, open, got)
		}
		i++
	}
	for i < len(line) && line[i] != closeCh {
		i++
	}
	if i == len(line) {
		return i, nil
	}
	if hasDelims && line[i] != closeCh {
		return 0, fmt.Errorf("parsing [%s] offset:%d, expected:%c, found:%c", s.name(), i, closeCh, line[i])
	}
	if closeCh == ' ' {
		return i, nil
	}
	return i + 1, nil
}

// Parse converts a single CLF-formatted line into an Entry, mirroring the
// Java source's CLFParser field-by-field state machine rather than a
// regular expression.
func Parse(line string) (Entry, error) {
	tokens := make(map[state]string, int(stateEnd))
	st := stateHost
	start := 0
	offset := start
	for offset < len(line) {
		next, err := st.consumeToken(line, offset)
		if err != nil {
			return Entry{}, fmt.Errorf("clf: %w: line: %q", err, line)
		}
		offset = next
		_, closeCh, hasDelims := st.delimiters()
		if hasDelims {
			tokens[st] = line[start+1 : offset-1]
		} else {
			tokens[st] = line[start:offset]
		}
		_ = closeCh
		start = offset + 1
		offset = start
		if st == stateBytes {
			st = stateEnd
			break
		}
		st++
	}
	if st != stateEnd {
		return Entry{}, fmt.Errorf("clf: incorrect format, last state [%s], line: %q", st.name(), line)
	}

	var e Entry
	e.Host = tokens[stateHost]
	e.Ident = tokens[stateIdent]
	e.AuthUser = tokens[stateAuthUser]

	ts, err := parseDateTime(tokens[stateDateTime])
	if err != nil {
		return Entry{}, &ParseError{Field: "datetime", Value: tokens[stateDateTime], Line: line, Err: err}
	}
	e.Timestamp = ts

	method, resource, version, err := parseRequest(tokens[stateRequest])
	if err != nil {
		return Entry{}, &ParseError{Field: "request", Value: tokens[stateRequest], Line: line, Err: err}
	}
	e.Method = method
	e.Resource = resource
	e.Version = version

	status, err := strconv.Atoi(tokens[stateStatus])
	if err != nil {
		return Entry{}, &ParseError{Field: "status", Value: tokens[stateStatus], Line: line, Err: err}
	}
	e.Status = status

	bytes, err := strconv.ParseInt(tokens[stateBytes], 10, 64)
	if err != nil {
		return Entry{}, &ParseError{Field: "bytes", Value: tokens[stateBytes], Line: line, Err: err}
	}
	e.Bytes = bytes

	return e, nil
}

func parseRequest(request string) (HTTPMethod, string, string, error) {
	parts := strings.SplitN(request, " ", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("incorrect request format: %q", request)
	}
	method := HTTPMethod(parts[0])
	if !validMethods[method] {
		return "", "", "", fmt.Errorf("unknown HTTP method %q", parts[0])
	}
	resource := parts[1]
	if !strings.HasPrefix(parts[2], "HTTP/") {
		return "", "", "", fmt.Errorf("incorrect request format: %q", request)
	}
	version := strings.TrimPrefix(parts[2], "HTTP/")
	return method, resource, version, nil
}
