package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweaver/planweaver/pkg/config"
	"github.com/planweaver/planweaver/pkg/llm"
)

func testPlanServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := newPlanServer(&runtime{cfg: config.NewConfig(), router: llm.NewRouter()})
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", server.handleGenerate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/generate"
}

func TestServeRejectsForeignOrigin(t *testing.T) {
	srv := testPlanServer(t)

	header := http.Header{"Origin": []string{"https://example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeAllowsLocalhostOrigin(t *testing.T) {
	srv := testPlanServer(t)

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

// Concurrent connections share one upgrader; the handler must never
// mutate it per request.
func TestServeConcurrentConnections(t *testing.T) {
	srv := testPlanServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()

			// A first message with no prompt gets an error frame back.
			assert.NoError(t, conn.WriteJSON(map[string]string{}))
			var frame map[string]any
			if assert.NoError(t, conn.ReadJSON(&frame)) {
				errText, _ := frame["error"].(string)
				assert.Contains(t, errText, "prompt")
			}
		}()
	}
	wg.Wait()
}
