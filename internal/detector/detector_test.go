package detector

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/config"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/service"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

var testNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type recordedSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordedSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newDetector(t *testing.T) (*Detector, *recordedSleep) {
	t.Helper()
	cfg := config.DefaultMonitorConfig()
	cfg.RequestTimeout = 2 * time.Second
	client, err := service.NewHTTPClient(5 * time.Second)
	require.NoError(t, err)

	d := New(client, cfg)
	rs := &recordedSleep{}
	d.Sleep = rs.sleep
	d.Now = func() time.Time { return testNow }
	return d, rs
}

// resource serves a mutable body with Last-Modified and ETag.
type resource struct {
	mu           sync.Mutex
	body         string
	lastModified string
	etag         string
	heads        atomic.Int32
	gets         atomic.Int32
}

func (r *resource) set(body, lastModified, etag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body, r.lastModified, r.etag = body, lastModified, etag
}

func (r *resource) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	body, lm, etag := r.body, r.lastModified, r.etag
	r.mu.Unlock()

	if req.Method == http.MethodHead {
		r.heads.Add(1)
	} else {
		r.gets.Add(1)
	}
	if lm != "" {
		w.Header().Set("Last-Modified", lm)
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "text/plain")
	if req.Method == http.MethodHead {
		return
	}
	fmt.Fprint(w, body)
}

func source(url string) models.Source {
	return models.Source{ID: "X", URL: url, Title: "Source X", UpdateFrequency: models.CadenceQuarterly}
}

func TestCheck_FirstCheck(t *testing.T) {
	res := &resource{}
	res.set("v1", "Tue, 01 Sep 2026 10:00:00 GMT", `"v1"`)
	srv := httptest.NewServer(res)
	defer srv.Close()

	d, _ := newDetector(t)
	result, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})

	assert.Equal(t, models.StatusFirstCheck, result.Status)
	assert.False(t, result.Changed)
	assert.Empty(t, result.ChangeDetails)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, http.StatusOK, *result.HTTPStatus)
	assert.Nil(t, result.Error)

	require.NotNil(t, fp)
	assert.Equal(t, "2026-10-14", fp.LastChecked)
	assert.Equal(t, utils.SHA256Hex([]byte("v1")), fp.ContentHash)
	assert.Equal(t, "Tue, 01 Sep 2026 10:00:00 GMT", fp.LastModified)
	assert.Equal(t, `"v1"`, fp.ETag)
	assert.Equal(t, "text/plain", fp.ContentType)
	assert.Equal(t, http.StatusOK, fp.HTTPStatus)
}

func TestCheck_DateOnlyPriorIsFirstCheck(t *testing.T) {
	res := &resource{}
	res.set("v1", "", "")
	srv := httptest.NewServer(res)
	defer srv.Close()

	d, _ := newDetector(t)
	result, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{LastChecked: "2026-01-01"})
	assert.Equal(t, models.StatusFirstCheck, result.Status)
	assert.NotNil(t, fp)
}

func TestCheck_Idempotent(t *testing.T) {
	res := &resource{}
	res.set("same", "Tue, 01 Sep 2026 10:00:00 GMT", `"same"`)
	srv := httptest.NewServer(res)
	defer srv.Close()

	d, _ := newDetector(t)
	_, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})
	require.NotNil(t, fp)

	result, fp2 := d.Check(context.Background(), source(srv.URL), *fp)
	assert.Equal(t, models.StatusUnchanged, result.Status)
	assert.False(t, result.Changed)
	assert.Empty(t, result.ChangeDetails)
	assert.Equal(t, *fp, *fp2)
}

func TestCheck_BodyChangeIsUpdated(t *testing.T) {
	res := &resource{}
	res.set("v1", "", "")
	srv := httptest.NewServer(res)
	defer srv.Close()

	d, _ := newDetector(t)
	_, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})
	require.NotNil(t, fp)

	res.set("v2", "", "")
	result, fp2 := d.Check(context.Background(), source(srv.URL), *fp)

	assert.Equal(t, models.StatusUpdated, result.Status)
	assert.True(t, result.Changed)
	want := fmt.Sprintf("content hash changed: %s -> %s",
		utils.ShortHash(utils.SHA256Hex([]byte("v1"))), utils.ShortHash(utils.SHA256Hex([]byte("v2"))))
	assert.Equal(t, []string{want}, result.ChangeDetails)
	assert.Equal(t, utils.SHA256Hex([]byte("v2")), fp2.ContentHash)
}

func TestCheck_DescriptorOrder(t *testing.T) {
	res := &resource{}
	res.set("v1", "Tue, 01 Sep 2026 10:00:00 GMT", `"0123456789012345678901234567890123456789"`)
	srv := httptest.NewServer(res)
	defer srv.Close()

	d, _ := newDetector(t)
	_, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})
	require.NotNil(t, fp)

	res.set("v2", "Wed, 14 Oct 2026 08:00:00 GMT", `"abc"`)
	result, _ := d.Check(context.Background(), source(srv.URL), *fp)

	require.Len(t, result.ChangeDetails, 3)
	assert.Equal(t, "Last-Modified changed: Tue, 01 Sep 2026 10:00:00 GMT -> Wed, 14 Oct 2026 08:00:00 GMT", result.ChangeDetails[0])
	assert.Equal(t, `ETag changed: "01234567890123456789012345678... -> "abc"...`, result.ChangeDetails[1])
	assert.Contains(t, result.ChangeDetails[2], "content hash changed: ")
}

func TestCheck_ServerErrorEverywhere(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, rs := newDetector(t)
	prior := models.Fingerprint{LastChecked: "2026-09-01", ContentHash: "abc"}
	result, fp := d.Check(context.Background(), source(srv.URL), prior)

	assert.Equal(t, models.StatusHTTPError, result.Status)
	assert.False(t, result.Changed)
	require.NotNil(t, result.Error)
	assert.Equal(t, "HTTP 500", *result.Error)
	require.NotNil(t, result.HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, *result.HTTPStatus)
	assert.Nil(t, fp)

	assert.Equal(t, int32(d.MaxRetries+1), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rs.waits)
}

func TestCheck_HeadNotAllowedFallsThroughToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	d, rs := newDetector(t)
	result, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})

	assert.Equal(t, models.StatusFirstCheck, result.Status)
	assert.Nil(t, result.Error)
	assert.Empty(t, rs.waits)
	require.NotNil(t, fp)
	assert.Equal(t, utils.SHA256Hex([]byte("body")), fp.ContentHash)
	assert.Empty(t, fp.ETag)
}

func TestCheck_GetFailsAfterHeadIsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"e2"`)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	d, _ := newDetector(t)
	prior := models.Fingerprint{LastChecked: "2026-09-01", ETag: `"e1"`, ContentHash: "deadbeef"}
	result, fp := d.Check(context.Background(), source(srv.URL), prior)

	assert.Equal(t, models.StatusUpdated, result.Status)
	assert.True(t, result.Partial)
	assert.Nil(t, result.Error)
	assert.Equal(t, []string{`ETag changed: "e1"... -> "e2"...`}, result.ChangeDetails)

	require.NotNil(t, fp)
	assert.Equal(t, "deadbeef", fp.ContentHash)
	assert.Equal(t, `"e2"`, fp.ETag)
	assert.Equal(t, http.StatusBadGateway, fp.HTTPStatus)
}

func TestCheck_GetFailsWithoutHeadIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, _ := newDetector(t)
	result, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})

	assert.Equal(t, models.StatusHTTPError, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "HTTP 404", *result.Error)
	assert.Nil(t, fp)
}

func TestCheck_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	d, rs := newDetector(t)
	d.Prober.(*service.Prober).Timeout = 30 * time.Millisecond
	result, fp := d.Check(context.Background(), source(srv.URL), models.Fingerprint{})

	assert.Equal(t, models.StatusTimeout, result.Status)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "timeout after 30ms")
	assert.Nil(t, result.HTTPStatus)
	assert.Nil(t, fp)
	assert.Len(t, rs.waits, d.MaxRetries)
}

func TestCheck_ConnectionError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	d, _ := newDetector(t)
	result, fp := d.Check(context.Background(), source("http://"+addr+"/doc.pdf"), models.Fingerprint{})

	assert.Equal(t, models.StatusConnectionError, result.Status)
	require.NotNil(t, result.Error)
	assert.LessOrEqual(t, len([]rune(*result.Error)), models.MaxErrorLen)
	assert.Nil(t, fp)
}

type scriptedProber struct {
	heads []service.Outcome
	gets  []service.Outcome
}

func (s *scriptedProber) Head(context.Context, string) service.Outcome {
	out := s.heads[0]
	if len(s.heads) > 1 {
		s.heads = s.heads[1:]
	}
	return out
}

func (s *scriptedProber) Get(context.Context, string) service.Outcome {
	out := s.gets[0]
	if len(s.gets) > 1 {
		s.gets = s.gets[1:]
	}
	return out
}

func TestCheck_RecoversAfterRetry(t *testing.T) {
	p := &scriptedProber{
		heads: []service.Outcome{
			{Kind: service.Retryable, Failure: models.StatusHTTPError, StatusCode: 503},
			{Kind: service.Success, StatusCode: 200, Header: service.Metadata{ETag: `"a"`}},
		},
		gets: []service.Outcome{{Kind: service.Success, StatusCode: 200, Body: &service.Body{SHA256: "ff"}}},
	}
	rs := &recordedSleep{}
	d := &Detector{Prober: p, MaxRetries: 2, BaseDelay: time.Second, Sleep: rs.sleep, Now: func() time.Time { return testNow }}

	result, fp := d.Check(context.Background(), source("https://example.org"), models.Fingerprint{ETag: `"a"`, ContentHash: "ff"})
	assert.Equal(t, models.StatusUnchanged, result.Status)
	assert.Equal(t, 200, *result.HTTPStatus)
	assert.Equal(t, []time.Duration{2 * time.Second}, rs.waits)
	require.NotNil(t, fp)
}

func TestCheck_TerminalErrorIsNotRetried(t *testing.T) {
	p := &scriptedProber{
		heads: []service.Outcome{{Kind: service.Terminal, Failure: models.StatusRequestError, Err: fmt.Errorf("unsupported protocol scheme")}},
	}
	rs := &recordedSleep{}
	d := &Detector{Prober: p, MaxRetries: 2, BaseDelay: time.Second, Sleep: rs.sleep}

	result, fp := d.Check(context.Background(), source("https://example.org"), models.Fingerprint{})
	assert.Equal(t, models.StatusRequestError, result.Status)
	assert.Equal(t, "unsupported protocol scheme", *result.Error)
	assert.Empty(t, rs.waits)
	assert.Nil(t, fp)
}

func TestCheck_CanceledDuringBackoff(t *testing.T) {
	p := &scriptedProber{
		heads: []service.Outcome{{Kind: service.Retryable, Failure: models.StatusHTTPError, StatusCode: 500}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Detector{Prober: p, MaxRetries: 2, BaseDelay: time.Second, Sleep: ContextSleep}

	result, fp := d.Check(ctx, source("https://example.org"), models.Fingerprint{})
	assert.Equal(t, models.StatusRequestError, result.Status)
	assert.Nil(t, fp)
}

func TestBackoff(t *testing.T) {
	d := &Detector{BaseDelay: time.Second}
	assert.Equal(t, 2*time.Second, d.Backoff(0))
	assert.Equal(t, 4*time.Second, d.Backoff(1))
	assert.Equal(t, 8*time.Second, d.Backoff(2))
}

func TestErrorMessageTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'e'
	}
	p := &scriptedProber{
		heads: []service.Outcome{{Kind: service.Terminal, Failure: models.StatusRequestError, Err: fmt.Errorf("%s", long)}},
	}
	d := &Detector{Prober: p}

	result, _ := d.Check(context.Background(), source("https://example.org"), models.Fingerprint{})
	require.NotNil(t, result.Error)
	assert.Len(t, *result.Error, models.MaxErrorLen)
}
