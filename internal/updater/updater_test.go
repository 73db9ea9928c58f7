package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func releaseServer(t *testing.T, tag string, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tag_name":"` + tag + `","html_url":"https://example.com/rel"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckReportsNewerRelease(t *testing.T) {
	hits := 0
	srv := releaseServer(t, "v1.2.0", &hits)

	u := New("v1.0.0", t.TempDir(), WithAPIBase(srv.URL), WithHTTPClient(srv.Client()))
	res, err := u.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.UpdateAvailable {
		t.Error("UpdateAvailable = false, want true")
	}
	if res.Latest != "v1.2.0" {
		t.Errorf("Latest = %q, want v1.2.0", res.Latest)
	}
}

func TestCheckUsesCacheWithinTTL(t *testing.T) {
	hits := 0
	srv := releaseServer(t, "v1.2.0", &hits)
	dir := t.TempDir()

	u := New("v1.0.0", dir, WithAPIBase(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := u.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("API hits = %d, want 1 (second check should be cached)", hits)
	}
}

func TestCheckIgnoresCacheForDifferentCurrent(t *testing.T) {
	hits := 0
	srv := releaseServer(t, "v1.2.0", &hits)
	dir := t.TempDir()

	u := New("v1.0.0", dir, WithAPIBase(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := u.Check(context.Background()); err != nil {
		t.Fatal(err)
	}

	u2 := New("v1.2.0", dir, WithAPIBase(srv.URL), WithHTTPClient(srv.Client()))
	res, err := u2.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Errorf("API hits = %d, want 2 (cache keyed to installed version)", hits)
	}
	if res.UpdateAvailable {
		t.Error("UpdateAvailable = true for up-to-date binary")
	}
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		current, latest string
		want            bool
	}{
		{"v1.0.0", "v1.1.0", true},
		{"1.1.0", "v1.1.0", false},
		{"v2.0.0", "v1.9.9", false},
		{"dev", "v9.0.0", false},
	}
	for _, tc := range cases {
		got, err := IsNewer(tc.current, tc.latest)
		if err != nil {
			t.Errorf("IsNewer(%q, %q): %v", tc.current, tc.latest, err)
			continue
		}
		if got != tc.want {
			t.Errorf("IsNewer(%q, %q) = %v, want %v", tc.current, tc.latest, got, tc.want)
		}
	}
}
