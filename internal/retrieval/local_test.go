package retrieval

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homepage = `<html><head><title>Acme Bakery</title>
<meta name="description" content="Fresh bread in Austin">
<script>var tracking = 1;</script><style>body{}</style></head>
<body><nav>Home | Menu</nav>
<h1>Welcome</h1>
<p>Call   us
 today.</p>
<a href="mailto:hello@acme.example">Email</a>
<a href="tel:+15125550100">Phone</a>
</body></html>`

func TestExtractText(t *testing.T) {
	got, err := ExtractText(strings.NewReader(homepage))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Acme Bakery Fresh bread in Austin"), got)
	assert.Contains(t, got, "Welcome Call us today.")
	assert.Contains(t, got, "mailto:hello@acme.example")
	assert.Contains(t, got, "tel:+15125550100")
	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "Menu")
}

func TestLocalSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "prospect-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(homepage))
	}))
	defer srv.Close()

	src := NewLocalSource(5*time.Second, "prospect-test")
	got, err := src.Fetch(context.Background(), Target{CompanyName: "Acme", Website: srv.URL})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Source: "+srv.URL+"\nContent: Acme Bakery"), got)
}

func TestLocalSource_DecodesCharset(t *testing.T) {
	// "Café" in ISO-8859-1.
	body := []byte("<html><body><p>Caf\xe9 Luna</p></body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Write(body)
	}))
	defer srv.Close()

	got, err := NewLocalSource(0, "").Fetch(context.Background(), Target{Website: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, got, "Café Luna")
}

func TestLocalSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewLocalSource(0, "").Fetch(context.Background(), Target{Website: srv.URL})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.HTTPStatus())
}

func TestLocalSource_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><script>x()</script></body></html>"))
	}))
	defer srv.Close()

	got, err := NewLocalSource(0, "").Fetch(context.Background(), Target{Website: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestDecodeBody_UnknownCharsetPassesThrough(t *testing.T) {
	r, err := decodeBody(strings.NewReader("abc"), "text/html; charset=x-unknown")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))

	r, err = decodeBody(strings.NewReader("abc"), "")
	require.NoError(t, err)
	assert.NotNil(t, r)
}
