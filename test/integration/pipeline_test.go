//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/statenames/internal/core/storage/memory"
	"github.com/aevon-lab/statenames/internal/loader"
	"github.com/aevon-lab/statenames/internal/lookup"
	"github.com/aevon-lab/statenames/internal/metrics"
	"github.com/aevon-lab/statenames/internal/server"
)

// Registered once per test process; every harness shares the collectors.
var testMetrics = metrics.New()

const stateFixture = `OH,F,1980,Mary,120
OH,F,1981,Mary,80
OH,M,1980,James,150
OH,M,1985,John,60
OH,F,1982,Linda,50
`

const supplementaryFixture = "Yuki\nJohn\nSven\n"

type integrationHarness struct {
	baseURL    string
	client     *http.Client
	loader     *loader.Service
	cancel     context.CancelFunc
	serverDone chan error
}

func (h *integrationHarness) close(t *testing.T) {
	t.Helper()

	h.cancel()
	select {
	case <-h.serverDone:
	case <-time.After(5 * time.Second):
		t.Log("server shutdown timed out")
	}
}

func startHarness(t *testing.T) *integrationHarness {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "OH.TXT"), []byte(stateFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other_names.txt"), []byte(supplementaryFixture), 0o644))

	repo := memory.NewRepository()
	loaderSvc := loader.NewService(repo, loader.Options{
		StateGlob:      filepath.Join(dir, "*.TXT"),
		OtherNamesPath: filepath.Join(dir, "other_names.txt"),
	}, testMetrics)

	lookupSvc := lookup.NewService(repo, 4, 2, testMetrics)

	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := server.New(addr, "release", nil, lookupSvc, testMetrics, repo)

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(ctx) }()

	baseURL := "http://" + addr
	waitForHealthy(t, baseURL)

	return &integrationHarness{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		loader:     loaderSvc,
		cancel:     cancel,
		serverDone: serverDone,
	}
}

func TestPipeline_PublishAndLookup(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	summary, err := h.loader.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.StatesPublished)

	// Ranked by aggregated total: Mary 200, James 150, John 60, Linda 50.
	status, names := getNames(t, h, "OH", "stateBucket1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"Mary", "James", "John", "Linda"}, names)

	// John is packed in OH's own buckets, so the supplementary bucket
	// carries only the remaining candidates.
	status, names = getNames(t, h, "OH", "otherNamesBucket1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"Yuki", "Sven"}, names)

	// Trailing buckets exist but are empty.
	status, names = getNames(t, h, "OH", "stateBucket4")
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, names)

	// Unpublished states resolve to an empty list, not an error.
	status, names = getNames(t, h, "ZZ", "stateBucket1")
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, names)
}

func TestPipeline_BucketValidation(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	_, err := h.loader.Run(context.Background())
	require.NoError(t, err)

	invalid := []string{"stateBucket5", "stateBucket0", "otherNamesBucket3", "bucket1"}
	for _, bucket := range invalid {
		status, _ := getNames(t, h, "OH", bucket)
		require.Equal(t, http.StatusBadRequest, status, bucket)
	}

	status, _ := getNames(t, h, "", "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestPipeline_ToolCallLookup(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	_, err := h.loader.Run(context.Background())
	require.NoError(t, err)

	envelope := map[string]interface{}{
		"call": map[string]interface{}{
			"transcript_with_tool_calls": []map[string]interface{}{
				{
					"tool_call_id": "call_1",
					"name":         "get_names_bucket",
					"arguments":    `{"bucket": "stateBucket1", "state": "OH"}`,
				},
			},
		},
	}

	status, body := postJSON(t, h.client, h.baseURL+"/v1/names/tool-calls", envelope)
	require.Equal(t, http.StatusOK, status, string(body))

	var payload struct {
		Names []string `json:"names"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, []string{"Mary", "James", "John", "Linda"}, payload.Names)
	require.Equal(t, 4, payload.Count)
}

func TestPipeline_RepublishServesIdenticalResponses(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	_, err := h.loader.Run(context.Background())
	require.NoError(t, err)

	first := rawLookup(t, h, "OH", "stateBucket1")

	_, err = h.loader.Run(context.Background())
	require.NoError(t, err)

	second := rawLookup(t, h, "OH", "stateBucket1")
	require.Equal(t, first, second)
}

func getNames(t *testing.T, h *integrationHarness, state, bucket string) (int, []string) {
	t.Helper()

	endpoint := fmt.Sprintf("%s/v1/names?state=%s&bucket=%s", h.baseURL, state, bucket)
	resp, err := h.client.Get(endpoint)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	var payload struct {
		Names []string `json:"names"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Names, payload.Count)
	return resp.StatusCode, payload.Names
}

func rawLookup(t *testing.T, h *integrationHarness, state, bucket string) string {
	t.Helper()

	resp, err := h.client.Get(fmt.Sprintf("%s/v1/names?state=%s&bucket=%s", h.baseURL, state, bucket))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	return string(body)
}

func postJSON(t *testing.T, client *http.Client, endpoint string, payload interface{}) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func waitForHealthy(t *testing.T, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server did not become healthy at %s", baseURL)
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
