package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lfp_bot/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error

	calls atomic.Int32
	// release, when set, blocks Do until it is closed.
	release chan struct{}
	entered chan struct{}
	lastReq *http.Request
	mu      sync.Mutex
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

const sampleBody = `{
  "total": 2,
  "chars": [
    {"charid": 42, "charname": "Alice", "mjob": "WHM", "mlvl": 40, "sjob": "BLM", "slvl": 20,
     "jobs": {"WHM": 40, "BLM": 20, "RDM": 18, "WAR": 0}, "seacomType": 1, "seacomMessage": "LFP exp"},
    {"charid": 7, "charname": "Bob", "mjob": "war", "mlvl": 42, "sjob": "nin", "slvl": 21}
  ]
}`

func TestFetch(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		wantNames []string
		wantErr   error
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: sampleBody, statusCode: 200},
			wantNames: []string{"Alice", "Bob"},
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   ErrNetwork,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   ErrNetwork,
		},
		{
			name:      "empty body",
			transport: &mockTransport{body: "  \n", statusCode: 200},
			wantErr:   ErrEmptyResponse,
		},
		{
			name:      "invalid json",
			transport: &mockTransport{body: "<html>oops</html>", statusCode: 200},
			wantErr:   ErrInvalidPayload,
		},
		{
			name:      "missing chars array",
			transport: &mockTransport{body: `{"total": 0}`, statusCode: 200},
			wantNames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.transport, "https://api.example.com/api/v1/", Options{})
			snap, err := f.Fetch(context.Background())

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				var fe *Error
				if !errors.As(err, &fe) {
					t.Fatalf("error %T is not *Error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var gotNames []string
			for _, r := range snap {
				gotNames = append(gotNames, r.Name)
			}
			if diff := cmp.Diff(tt.wantNames, gotNames); diff != "" {
				t.Errorf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchRequest(t *testing.T) {
	tr := &mockTransport{body: sampleBody, statusCode: 200}
	f := New(tr, "https://api.example.com/api/v1/", Options{})

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	tr.mu.Lock()
	req := tr.lastReq
	tr.mu.Unlock()

	if diff := cmp.Diff("https://api.example.com/api/v1/chars/lfp", req.URL.String()); diff != "" {
		t.Errorf("url mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(http.MethodGet, req.Method); diff != "" {
		t.Errorf("method mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("no-cache", req.Header.Get("Cache-Control")); diff != "" {
		t.Errorf("Cache-Control mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchCoalescesConcurrentCalls(t *testing.T) {
	tr := &mockTransport{
		body:       sampleBody,
		statusCode: 200,
		release:    make(chan struct{}),
		entered:    make(chan struct{}, 4),
	}
	f := New(tr, "https://api.example.com", Options{})

	results := make(chan model.Snapshot, 2)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	call := func() {
		defer wg.Done()
		snap, err := f.Fetch(context.Background())
		results <- snap
		errs <- err
	}

	wg.Add(1)
	go call()
	<-tr.entered

	wg.Add(1)
	go call()
	// Give the second caller time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(tr.release)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	for snap := range results {
		if diff := cmp.Diff(2, len(snap)); diff != "" {
			t.Errorf("snapshot size mismatch (-want +got):\n%s", diff)
		}
	}
	if diff := cmp.Diff(int32(1), tr.calls.Load()); diff != "" {
		t.Errorf("network calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchEnforcesMinInterval(t *testing.T) {
	tr := &mockTransport{body: sampleBody, statusCode: 200}
	interval := 80 * time.Millisecond
	f := New(tr, "https://api.example.com", Options{MinInterval: interval})

	start := time.Now()
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < interval {
		t.Errorf("second fetch after %v, want at least %v", elapsed, interval)
	}
	if diff := cmp.Diff(int32(2), tr.calls.Load()); diff != "" {
		t.Errorf("network calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchThrottleHonoursCancellation(t *testing.T) {
	tr := &mockTransport{body: sampleBody, statusCode: 200}
	f := New(tr, "https://api.example.com", Options{MinInterval: time.Hour})

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if diff := cmp.Diff(int32(1), tr.calls.Load()); diff != "" {
		t.Errorf("network calls mismatch (-want +got):\n%s", diff)
	}
}
