package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irsalhamdi/course-portal/api"
	"github.com/irsalhamdi/course-portal/core/academy"
	"github.com/irsalhamdi/course-portal/core/auth"
	"github.com/irsalhamdi/course-portal/metrics"
	"github.com/irsalhamdi/course-portal/store/memstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const identityHeader = "X-Identity"

type TestEnv struct {
	*httptest.Server
	Registry *prometheus.Registry
}

func NewTestEnv(t *testing.T, name string) *TestEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	reg := prometheus.NewRegistry()
	svc := academy.New(academy.Config{
		Store:          memstore.New(),
		Log:            log.WithField("test", name),
		Metrics:        metrics.New(reg),
		CapabilityCost: bcrypt.MinCost,
	})

	mux := api.APIMux(api.APIConfig{
		Log:         log,
		Service:     svc,
		Verifier:    auth.Header(identityHeader),
		Gatherer:    reg,
		MetricsPath: "/metrics",
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &TestEnv{Server: srv, Registry: reg}
}

// request describes one call. Identity and Capability become headers when
// set.
type request struct {
	Method     string
	Path       string
	Body       interface{}
	Identity   string
	Capability string
}

// do performs req, fails the test unless the status matches and decodes
// the response into out when out is not nil.
func (e *TestEnv) do(t *testing.T, req request, status int, out interface{}) {
	t.Helper()

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}

	r, err := http.NewRequest(req.Method, e.URL+req.Path, body)
	if err != nil {
		t.Fatal(err)
	}
	if req.Identity != "" {
		r.Header.Set(identityHeader, req.Identity)
	}
	if req.Capability != "" {
		r.Header.Set(academy.CapabilityHeader, req.Capability)
	}

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != status {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("%s %s: expected status %d, got %s: %s", req.Method, req.Path, status, w.Status, b)
	}

	if out == nil {
		return
	}
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("%s %s: decoding response: %v", req.Method, req.Path, err)
	}
}

func path(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
