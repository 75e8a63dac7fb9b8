package httpserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	httpserver "gymdir/internal/adapters/http_server"
	"gymdir/internal/app"
	"gymdir/internal/reconcile"
	"gymdir/internal/storage/memory"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	policy := reconcile.DefaultPolicy()
	matcher := reconcile.NewMatcher(policy)
	ex := reconcile.NewExecutor(store, matcher, reconcile.NewPlanner(store, policy))
	clf := reconcile.NewClassifier(store, matcher)

	srv := httpserver.New(zerolog.Nop(), 5*time.Second)
	srv.MountHandlers(&httpserver.Handlers{
		Q: app.NewQueryService(store, nil, time.Minute),
		C: app.NewCommandService(store, ex, clf, nil),
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, hdr ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: body is not JSON: %s", method, url, raw)
		}
	}
	return res, out
}

const annex = `{"name":"Test Gym Annex","region":"tokyo","city":"koto",
 "payload":{"meta":{"create_gym":true},"equipments":[{"slug":"smith-machine","count":2}]}}`

func TestCandidateLifecycle(t *testing.T) {
	ts := newServer(t)

	res, body := do(t, "POST", ts.URL+"/v1/candidates", annex)
	if res.StatusCode != http.StatusCreated || body["id"] != float64(1) || body["status"] != "new" {
		t.Fatalf("create: %d %v", res.StatusCode, body)
	}
	if res.Header.Get("Location") != "/v1/candidates/1" {
		t.Fatalf("missing Location header: %q", res.Header.Get("Location"))
	}

	// dry run proposes without writing
	res, body = do(t, "POST", ts.URL+"/v1/candidates/1/approve?dry_run=true", "")
	if res.StatusCode != http.StatusOK || body["dry_run"] != true {
		t.Fatalf("dry run: %d %v", res.StatusCode, body)
	}
	plan := body["plan"].(map[string]any)
	if gym := plan["gym"].(map[string]any); gym["action"] != "create" || gym["slug"] != "test-gym-annex-koto-tokyo" {
		t.Fatalf("unexpected proposal: %v", gym)
	}

	res, body = do(t, "POST", ts.URL+"/v1/candidates/1/approve", `{}`)
	if res.StatusCode != http.StatusOK || body["status"] != "approved" {
		t.Fatalf("approve: %d %v", res.StatusCode, body)
	}
	gym := body["gym"].(map[string]any)
	if gym["id"] != float64(1) || gym["slug"] != "test-gym-annex-koto-tokyo" {
		t.Fatalf("unexpected gym: %v", gym)
	}

	// second approval conflicts
	res, body = do(t, "POST", ts.URL+"/v1/candidates/1/approve", "")
	if res.StatusCode != http.StatusConflict || res.Header.Get("Content-Type") != "application/problem+json" || body["status"] != float64(409) {
		t.Fatalf("want 409 problem, got %d %v", res.StatusCode, body)
	}

	res, body = do(t, "GET", ts.URL+"/v1/gyms/1", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get gym: %d %v", res.StatusCode, body)
	}
	eq := body["equipment"].([]any)
	if len(eq) != 1 || eq[0].(map[string]any)["count"] != float64(2) {
		t.Fatalf("unexpected equipment: %v", eq)
	}
}

func TestGetCandidate_ETag(t *testing.T) {
	ts := newServer(t)
	do(t, "POST", ts.URL+"/v1/candidates", annex)

	res, body := do(t, "GET", ts.URL+"/v1/candidates/1", "")
	if res.StatusCode != http.StatusOK || body["similar"] == nil {
		t.Fatalf("get: %d %v", res.StatusCode, body)
	}
	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	res, _ = do(t, "GET", ts.URL+"/v1/candidates/1", "", "If-None-Match", etag)
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("want 304, got %d", res.StatusCode)
	}
}

func TestListAndRejectAndClassify(t *testing.T) {
	ts := newServer(t)
	for i := 0; i < 3; i++ {
		do(t, "POST", ts.URL+"/v1/candidates", annex)
	}

	res, body := do(t, "GET", ts.URL+"/v1/candidates?limit=2", "")
	if res.StatusCode != http.StatusOK || len(body["items"].([]any)) != 2 || body["next_cursor"] == nil {
		t.Fatalf("list: %d %v", res.StatusCode, body)
	}
	res, body = do(t, "GET", ts.URL+"/v1/candidates?limit=2&cursor="+body["next_cursor"].(string), "")
	if res.StatusCode != http.StatusOK || len(body["items"].([]any)) != 1 || body["next_cursor"] != nil {
		t.Fatalf("second page: %d %v", res.StatusCode, body)
	}

	res, body = do(t, "POST", ts.URL+"/v1/candidates/classify", `{"limit":10}`)
	if res.StatusCode != http.StatusOK || len(body["duplicate"].([]any)) != 2 {
		t.Fatalf("classify: %d %v", res.StatusCode, body)
	}

	res, body = do(t, "POST", ts.URL+"/v1/candidates/3/reject", `{"reason":"duplicate listing"}`)
	if res.StatusCode != http.StatusOK || body["status"] != "rejected" {
		t.Fatalf("reject: %d %v", res.StatusCode, body)
	}
	entries := body["payload"].(map[string]any)["_rejection"].(map[string]any)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("want one rejection entry, got %v", entries)
	}

	res, _ = do(t, "PATCH", ts.URL+"/v1/candidates/3", `{"name":"late edit"}`)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("patch rejected: want 409, got %d", res.StatusCode)
	}
	res, body = do(t, "PATCH", ts.URL+"/v1/candidates/2", `{"name":"Renamed Annex"}`)
	if res.StatusCode != http.StatusOK || body["name"] != "Renamed Annex" {
		t.Fatalf("patch: %d %v", res.StatusCode, body)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newServer(t)
	cases := []struct {
		method, path, body string
		want               int
	}{
		{"GET", "/v1/candidates/42", "", http.StatusNotFound},
		{"GET", "/v1/candidates/abc", "", http.StatusBadRequest},
		{"GET", "/v1/gyms/7", "", http.StatusNotFound},
		{"POST", "/v1/candidates", `{"name":"No City","region":"tokyo"}`, http.StatusUnprocessableEntity},
		{"POST", "/v1/candidates", `{"name":`, http.StatusBadRequest},
		{"POST", "/v1/candidates", `{"unknown":1}`, http.StatusBadRequest},
		{"GET", "/v1/candidates?limit=0", "", http.StatusBadRequest},
		{"GET", "/v1/candidates?cursor=!!", "", http.StatusUnprocessableEntity},
		{"POST", "/v1/candidates/9/reject", `{"reason":"x"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		res, body := do(t, tc.method, ts.URL+tc.path, tc.body)
		if res.StatusCode != tc.want {
			t.Fatalf("%s %s: want %d, got %d %v", tc.method, tc.path, tc.want, res.StatusCode, body)
		}
		if body["status"] != float64(tc.want) {
			t.Fatalf("%s %s: problem body status %v", tc.method, tc.path, body["status"])
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newServer(t)
	res, err := http.Get(ts.URL + "/healthz")
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", res, err)
	}
	res.Body.Close()
}
