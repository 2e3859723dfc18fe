package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/planweaver/planweaver/pkg/events"
	"github.com/planweaver/planweaver/pkg/logging"
	"github.com/planweaver/planweaver/pkg/orchestrator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream generation events over a websocket",
	Long: `Serve exposes plan generation over a websocket. A client connects to
/generate, sends one JSON message {"prompt": "..."}, and receives every
generation event as its own JSON frame, finishing with a result or error
frame before the connection closes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}

		server := newPlanServer(rt)
		mux := http.NewServeMux()
		mux.HandleFunc("/generate", server.handleGenerate)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		fmt.Printf("listening on %s\n", serveAddr)
		return http.ListenAndServe(serveAddr, mux)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8547", "Listen address")
}

type planServer struct {
	rt       *runtime
	upgrader websocket.Upgrader
}

// newPlanServer configures the upgrader once; the handler only reads it,
// so concurrent connections never mutate shared state.
func newPlanServer(rt *runtime) *planServer {
	return &planServer{
		rt: rt,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
			},
		},
	}
}

// generateRequest is the single message a client sends after connecting.
type generateRequest struct {
	Prompt         string `json:"prompt"`
	BudgetEstimate int    `json:"budget_estimate,omitempty"`
}

func (s *planServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Get().LogError(fmt.Errorf("websocket upgrade: %w", err))
		return
	}
	defer conn.Close()

	var req generateRequest
	if err := conn.ReadJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		_ = conn.WriteJSON(map[string]string{"error": "expected {\"prompt\": \"...\"} as the first message"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	sink := &wsSink{conn: conn}
	o := s.rt.newOrchestrator(sink)
	outcome, err := o.Generate(ctx, orchestrator.Request{
		Prompt:         req.Prompt,
		Candidates:     s.rt.candidates,
		BudgetEstimate: req.BudgetEstimate,
	})
	if err != nil {
		var terr *orchestrator.TerminalError
		frame := map[string]any{"error": err.Error()}
		if errors.As(err, &terr) {
			frame["code"] = terr.Code
			frame["attempted"] = terr.Attempted
		}
		_ = conn.WriteJSON(frame)
		return
	}

	_ = conn.WriteJSON(map[string]any{
		"result": outcome.Plan,
		"meta": map[string]any{
			"model":    outcome.Meta.Label,
			"calls":    outcome.Meta.Calls,
			"warnings": outcome.Meta.Warnings,
		},
	})
}

// wsSink forwards each event as one websocket text frame, reusing the
// event's NDJSON shape so websocket and stdout clients parse the same
// records.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Emit(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = s.conn.WriteMessage(websocket.TextMessage, payload)
}
