package clf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// L-1: parsing a serialised Entry and re-serialising it must reproduce the
// original text.
func TestParseStringRoundTrip(t *testing.T) {
	line := `127.0.0.1 - james [09/05/2018:16:00:39 +0000] "GET /report HTTP/1.0" 200 123`

	e, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, line, e.String())
}

func TestParseFieldValues(t *testing.T) {
	line := `10.0.0.5 ident-1 frank [09/05/2018:16:00:42 +0000] "POST /api/user HTTP/1.1" 503 12`

	e, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", e.Host)
	assert.Equal(t, "ident-1", e.Ident)
	assert.Equal(t, "frank", e.AuthUser)
	assert.Equal(t, MethodPOST, e.Method)
	assert.Equal(t, "/api/user", e.Resource)
	assert.Equal(t, "1.1", e.Version)
	assert.Equal(t, 503, e.Status)
	assert.Equal(t, int64(12), e.Bytes)
	assert.Equal(t, "/api", e.Section())
}

func TestParseAcceptsFullMonthNameDateTime(t *testing.T) {
	line := `127.0.0.1 - jill [09/May/2018:16:00:41 +0000] "GET /api/user HTTP/1.0" 200 234`

	e, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, int64(1525881641000), e.Timestamp)
}

func TestParseRejectsMalformedDateTime(t *testing.T) {
	line := `127.0.0.1 - james [not-a-date] "GET /report HTTP/1.0" 200 123`

	_, err := Parse(line)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "datetime", perr.Field)
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	line := `127.0.0.1 - james [09/05/2018:16:00:39 +0000] "TRACE /report HTTP/1.0" 200 123`

	_, err := Parse(line)
	require.Error(t, err)
}

func TestParseRejectsMissingQuoteDelimiter(t *testing.T) {
	line := `127.0.0.1 - james [09/05/2018:16:00:39 +0000] GET /report HTTP/1.0" 200 123`

	_, err := Parse(line)
	require.Error(t, err)
}

func TestParseRejectsNonNumericStatus(t *testing.T) {
	line := `127.0.0.1 - james [09/05/2018:16:00:39 +0000] "GET /report HTTP/1.0" OK 123`

	_, err := Parse(line)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "status", perr.Field)
}

func TestParseRejectsTruncatedLine(t *testing.T) {
	_, err := Parse(`127.0.0.1 - james [09/05/2018:16:00:39 +0000] "GET /report HTTP/1.0" 200`)
	require.Error(t, err)
}

func TestSectionWithoutSecondSlash(t *testing.T) {
	e := Entry{Resource: "/health"}
	assert.Equal(t, "", e.Section())
}

func TestSectionEmptyResource(t *testing.T) {
	e := Entry{Resource: "-"}
	assert.Equal(t, "", e.Section())
}
