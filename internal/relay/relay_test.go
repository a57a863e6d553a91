package relay

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
)

const testSecret = "dev-secret"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   string
	}{
		{name: "empty", scores: map[string]float64{}, want: `{}`},
		{name: "nil", scores: nil, want: `{}`},
		{
			name:   "keys sorted bytewise",
			scores: map[string]float64{"b": 0.95, "a": 50.2, "B": 1, "10": 3.5, "9": 7},
			want:   `{"10":3.5,"9":7.0,"B":1.0,"a":50.2,"b":0.95}`,
		},
		{name: "zero and hundred", scores: map[string]float64{"x": 0, "y": 100}, want: `{"x":0.0,"y":100.0}`},
		{name: "quotes escaped", scores: map[string]float64{`a"b`: 1.5}, want: `{"a\"b":1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.scores)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	scores := map[string]float64{}
	for i := 0; i < 200; i++ {
		scores[string(rune('a'+i%26))+string(rune('A'+i/26))] = float64(i) / 7
	}

	first, err := Canonicalize(scores)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Canonicalize(scores)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCanonicalize_RejectsNonFinite(t *testing.T) {
	_, err := Canonicalize(map[string]float64{"x": math.NaN()})
	assert.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"X":0.95,"Y":50.2}`)
	sig := Sign(body, testSecret)

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, Verify(body, sig, testSecret))
	assert.False(t, Verify(body, sig, "other-secret"))
	assert.False(t, Verify(body, sig[len("sha256="):], testSecret))

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		assert.False(t, Verify(tampered, sig, testSecret), "byte %d", i)
	}
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	got := Sign([]byte("what do ya want for nothing?"), "Jefe")
	assert.Equal(t, "sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestCheckCredential(t *testing.T) {
	assert.True(t, CheckCredential("pw", "pw"))
	assert.False(t, CheckCredential("pw2", "pw"))
	assert.False(t, CheckCredential("", ""))
}

type captured struct {
	mu      sync.Mutex
	body    []byte
	headers http.Header
}

func (c *captured) get() ([]byte, http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body, c.headers
}

func receiver(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		c.mu.Lock()
		c.body = body
		c.headers = r.Header.Clone()
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestPublisher_Publish_Delivered(t *testing.T) {
	srv, got := receiver(t, http.StatusOK)
	p := NewPublisher(testSecret, "pw", time.Second, logger.NewTestLogger(t))

	scores := map[string]float64{"Y": 50.2, "X": 0.95}
	d := p.Publish(t.Context(), srv.URL, scores)

	require.NoError(t, d.Err)
	assert.True(t, d.Delivered)
	assert.Equal(t, http.StatusOK, d.StatusCode)

	body, headers := got.get()
	assert.Equal(t, `{"X":0.95,"Y":50.2}`, string(body))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "pw", headers.Get(HeaderCredential))
	assert.True(t, Verify(body, headers.Get(HeaderSignature), testSecret))
	assert.True(t, CheckCredential(headers.Get(HeaderCredential), "pw"))
}

func TestPublisher_Publish_OmitsEmptyCredential(t *testing.T) {
	srv, got := receiver(t, http.StatusCreated)
	p := NewPublisher(testSecret, "", time.Second, logger.NewTestLogger(t))

	d := p.Publish(t.Context(), srv.URL, map[string]float64{"X": 1})

	assert.True(t, d.Delivered)
	assert.Equal(t, http.StatusCreated, d.StatusCode)
	_, headers := got.get()
	_, present := headers[HeaderCredential]
	assert.False(t, present)
}

func TestPublisher_Publish_Rejected(t *testing.T) {
	srv, _ := receiver(t, http.StatusUnauthorized)
	p := NewPublisher(testSecret, "pw", time.Second, logger.NewTestLogger(t))

	d := p.Publish(t.Context(), srv.URL, map[string]float64{"X": 1})

	assert.False(t, d.Delivered)
	assert.Equal(t, http.StatusUnauthorized, d.StatusCode)
	assert.True(t, apperrors.HasCode(d.Err, apperrors.ErrCodeRelayDeliveryFail))
}

func TestPublisher_Publish_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewPublisher(testSecret, "pw", time.Second, logger.NewTestLogger(t))
	d := p.Publish(t.Context(), url, map[string]float64{"X": 1})

	assert.False(t, d.Delivered)
	assert.Zero(t, d.StatusCode)
	assert.True(t, apperrors.HasCode(d.Err, apperrors.ErrCodeRelayDeliveryFail))
}

func TestPublisher_Publish_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	p := NewPublisher(testSecret, "pw", 50*time.Millisecond, logger.NewTestLogger(t))
	d := p.Publish(t.Context(), srv.URL, map[string]float64{"X": 1})

	assert.False(t, d.Delivered)
	assert.Zero(t, d.StatusCode)
	assert.Error(t, d.Err)
}

func TestPublisher_Publish_SigningFailure(t *testing.T) {
	p := NewPublisher(testSecret, "pw", time.Second, logger.NewTestLogger(t))

	d := p.Publish(t.Context(), "http://127.0.0.1:1", map[string]float64{"X": math.Inf(1)})

	assert.False(t, d.Delivered)
	assert.True(t, apperrors.HasCode(d.Err, apperrors.ErrCodeRelaySigningFailed))
}
