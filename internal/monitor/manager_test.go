package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/catalog"
	"github.com/MrSnakeDoc/srcwatch/internal/config"
	"github.com/MrSnakeDoc/srcwatch/internal/detector"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/scheduler"
	"github.com/MrSnakeDoc/srcwatch/internal/service"
	"github.com/MrSnakeDoc/srcwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

type fixture struct {
	mgr    *Manager
	store  *store.FS
	waits  []time.Duration
	mu     sync.Mutex
	body   atomic.Value
	broken atomic.Int32
	srv    *httptest.Server
}

func newFixture(t *testing.T, rows func(base string) string) *fixture {
	t.Helper()
	f := &fixture{}
	f.body.Store("v1")

	mux := http.NewServeMux()
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, f.body.Load().(string))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		f.broken.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(catPath, []byte(rows(f.srv.URL)), 0o644))
	cat, err := catalog.Load(catPath)
	require.NoError(t, err)

	f.store, err = store.NewFS(filepath.Join(dir, "state"))
	require.NoError(t, err)

	client, err := service.NewHTTPClient(5 * time.Second)
	require.NoError(t, err)
	cfg := config.DefaultMonitorConfig()
	det := detector.New(client, cfg)
	det.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	f.mgr = New(cat, f.store, scheduler.NewGate(cfg.StaticSources), det)
	f.mgr.Sleep = func(ctx context.Context, d time.Duration) error {
		f.mu.Lock()
		f.waits = append(f.waits, d)
		f.mu.Unlock()
		return ctx.Err()
	}
	return f
}

func singleSource(base string) string {
	return "source_id,url,title,update_frequency\nX," + base + "/x,Source X,quarterly\n"
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t, singleSource)
	ctx := context.Background()

	results, err := f.mgr.Run(ctx, Options{Delay: 2 * time.Second})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusFirstCheck, results[0].Status)

	state, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, state, "X")
	assert.NotEmpty(t, state["X"].ContentHash)

	// same day without force: not due anymore
	results, err = f.mgr.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = f.mgr.Run(ctx, Options{Force: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusUnchanged, results[0].Status)

	f.body.Store("v2")
	results, err = f.mgr.Run(ctx, Options{Force: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusUpdated, results[0].Status)
	assert.True(t, results[0].Changed)
	require.NotEmpty(t, results[0].ChangeDetails)
	assert.Contains(t, results[0].ChangeDetails[len(results[0].ChangeDetails)-1], "content hash changed")

	assert.Empty(t, f.waits)
}

func mixedCatalog(base string) string {
	return "source_id,url,title,category,update_frequency\n" +
		"BAD," + base + "/broken,Broken,guidelines,annual\n" +
		"DM77_001," + base + "/x,Decree,law,static\n" +
		"X," + base + "/x,Source X,guidelines,quarterly\n" +
		"Y," + base + "/x,Source Y,registry,continuous\n"
}

func TestRun_ErrorDoesNotAbortRun(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	ctx := context.Background()

	results, err := f.mgr.Run(ctx, Options{Delay: time.Second})
	require.NoError(t, err)
	require.Len(t, results, 4)

	byID := map[string]models.CheckResult{}
	for _, r := range results {
		byID[r.SourceID] = r
	}
	assert.Equal(t, models.StatusHTTPError, byID["BAD"].Status)
	assert.Equal(t, models.StatusSkippedStatic, byID["DM77_001"].Status)
	assert.Equal(t, models.StatusFirstCheck, byID["X"].Status)
	assert.Equal(t, models.StatusFirstCheck, byID["Y"].Status)
	assert.Equal(t, []string{"BAD", "DM77_001", "X", "Y"}, []string{results[0].SourceID, results[1].SourceID, results[2].SourceID, results[3].SourceID})

	// three network checks, so two waits
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.waits)
	assert.Equal(t, int32(3), f.broken.Load())

	state, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, state, "BAD")
	assert.NotContains(t, state, "DM77_001")
	assert.Contains(t, state, "X")
}

func TestRun_StaticSkippedEvenWhenForced(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	stub := &stubChecker{}
	f.mgr.Checker = stub

	results, err := f.mgr.Run(context.Background(), Options{IDs: []string{"DM77_001", "X"}, Force: true, Delay: time.Second})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.StatusSkippedStatic, results[0].Status)
	assert.Equal(t, "X", results[1].SourceID)

	// only X reached the checker, and no pause follows the last network check
	assert.Equal(t, []string{"X"}, stub.ids)
	assert.Empty(t, f.waits)

	state, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, state, "DM77_001")
}

func TestRun_ErrorKeepsPriorFingerprint(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	ctx := context.Background()
	prior := models.RunState{"BAD": {LastChecked: "2020-01-01", ContentHash: "cafe"}}
	require.NoError(t, f.store.Save(ctx, prior))

	_, err := f.mgr.Run(ctx, Options{IDs: []string{"BAD"}})
	require.NoError(t, err)

	state, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, prior["BAD"], state["BAD"])
}

func TestPlan_FiltersAndDryRun(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	ctx := context.Background()

	plan, err := f.mgr.Plan(ctx, Options{Category: "guidelines"})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Candidates)
	require.Len(t, plan.Selected, 2)
	assert.Equal(t, "BAD", plan.Selected[0].ID)
	assert.Equal(t, "X", plan.Selected[1].ID)
	assert.Equal(t, 2, plan.Network(f.mgr.Gate))

	assert.Equal(t, int32(0), f.broken.Load())
	_, err = os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestRun_CorruptStateAbortsBeforeNetwork(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	require.NoError(t, os.WriteFile(f.store.Path(), []byte("{oops"), 0o644))

	_, err := f.mgr.Run(context.Background(), Options{Force: true})
	assert.Error(t, err)
	assert.Equal(t, int32(0), f.broken.Load())

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "{oops", string(data))
}

type stubChecker struct {
	calls int
	ids   []string
}

func (s *stubChecker) Check(ctx context.Context, src models.Source, prior models.Fingerprint) (models.CheckResult, *models.Fingerprint) {
	s.calls++
	s.ids = append(s.ids, src.ID)
	res := models.NewCheckResult(src, time.Now())
	res.Status = models.StatusFirstCheck
	return res, &models.Fingerprint{LastChecked: "2026-10-14", ContentHash: src.ID}
}

func TestRun_CancelStopsBetweenSources(t *testing.T) {
	f := newFixture(t, mixedCatalog)
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubChecker{}
	f.mgr.Checker = stub
	f.mgr.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	results, err := f.mgr.Run(ctx, Options{IDs: []string{"X", "Y"}, Delay: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, 1, stub.calls)

	state, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, state, "X")
	assert.NotContains(t, state, "Y")
}
