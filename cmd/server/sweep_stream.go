package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"eb-evaluation-lab/internal/selection"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Sweep stream message types.
const (
	msgStep     = "step"
	msgBoundary = "boundary"
	msgDone     = "done"
	msgError    = "error"
)

// sweepMessage is one JSON frame of a sweep stream.
type sweepMessage struct {
	Type string `json:"type"`

	// step
	Index      int     `json:"index"`
	Ratio      float64 `json:"ratio"`
	ModelID    string  `json:"model_id,omitempty"`
	RunnerUpID string  `json:"runner_up_id,omitempty"`
	Margin     float64 `json:"margin"`

	// boundary
	LowerRatio float64 `json:"lower_ratio,omitempty"`
	UpperRatio float64 `json:"upper_ratio,omitempty"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`

	// done
	Steps int `json:"steps,omitempty"`

	Error string `json:"error,omitempty"`
}

func stepMessage(st selection.SweepStep) sweepMessage {
	msg := sweepMessage{
		Type:       msgStep,
		Index:      st.Index,
		Ratio:      st.Ratio,
		ModelID:    st.Decision.ModelID,
		RunnerUpID: st.Decision.RunnerUpID,
		Margin:     st.Decision.Margin,
	}
	if st.Err != nil {
		msg.Error = st.Err.Error()
	}
	return msg
}

func boundaryMessage(b selection.Boundary) sweepMessage {
	return sweepMessage{
		Type:       msgBoundary,
		LowerRatio: b.LowerRatio,
		UpperRatio: b.UpperRatio,
		From:       b.From,
		To:         b.To,
	}
}

// parseRatios parses a comma-separated ratio list. Empty input means the configured grid.
func parseRatios(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	var ratios []float64
	for _, part := range strings.Split(s, ",") {
		r, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ratio %q", part)
		}
		ratios = append(ratios, r)
	}
	return ratios, nil
}

// handleSweep streams the sweep of ?series= step by step.
// With ?stop=first_boundary the stream ends at the first decision change;
// otherwise every step is sent, followed by all boundaries.
// ?ratios=0.5,1,2 overrides the configured grid.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Sweep upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s.metrics.SweepStreamStarted()
	defer s.metrics.SweepStreamEnded()

	ctx := r.Context()
	q := r.URL.Query()
	seriesID := q.Get("series")
	stopAtBoundary := q.Get("stop") == "first_boundary"

	send := func(msg sweepMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}
	fail := func(err error) {
		send(sweepMessage{Type: msgError, Error: err.Error()})
		s.closeStream(conn)
	}

	if seriesID == "" {
		fail(fmt.Errorf("missing series parameter"))
		return
	}
	ratios, err := parseRatios(q.Get("ratios"))
	if err != nil {
		fail(err)
		return
	}

	sw, err := s.orch.OpenSweep(ctx, seriesID, ratios)
	if err != nil {
		fail(err)
		return
	}

	// streamed sends each step as it is computed; FirstBoundary stops pulling
	// at the first decision change
	var (
		writeErr error
		steps    []selection.SweepStep
	)
	streamed := func(yield func(int, selection.SweepStep) bool) {
		for i, st := range sw.All() {
			if ctx.Err() != nil {
				writeErr = ctx.Err()
				return
			}
			if writeErr = send(stepMessage(st)); writeErr != nil {
				return
			}
			steps = append(steps, st)
			if !yield(i, st) {
				return
			}
		}
	}

	var boundaries []selection.Boundary
	if stopAtBoundary {
		if b, ok := selection.FirstBoundary(streamed); ok {
			boundaries = append(boundaries, b)
		}
	} else {
		for range streamed {
		}
		boundaries = selection.Boundaries(steps)
	}
	if writeErr != nil {
		s.logger.Printf("Sweep stream %s ended: %v", seriesID, writeErr)
		return
	}

	for _, b := range boundaries {
		if err := send(boundaryMessage(b)); err != nil {
			return
		}
	}
	if err := send(sweepMessage{Type: msgDone, Steps: len(steps)}); err != nil {
		return
	}
	s.closeStream(conn)
}

// closeStream sends a normal close frame.
func (s *Server) closeStream(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}
