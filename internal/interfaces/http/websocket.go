package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/montecarlo"
)

const (
	writeWait  = 10 * time.Second
	streamBuf  = 256
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isLocalOrigin(origin)
	},
}

// streamMonteCarlo handles GET /ws/montecarlo/{symbol}. The simulation is
// configured with the same query parameters as the JSON body of
// POST /montecarlo; every sample is sent as a frame, then the result.
func (s *Server) streamMonteCarlo(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	req := MonteCarloRequest{Iterations: 1000, TimesPerYear: 12}
	var err error
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"iterations", &req.Iterations},
		{"freq", &req.TimesPerYear},
		{"month", &req.TradingMonth},
	} {
		if *p.dst, err = intParam(r, p.name, *p.dst); err != nil {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
			return
		}
	}
	seed, err := intParam(r, "seed", 0)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, r, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	req.Seed = int64(seed)
	if req.Iterations > s.config.MaxIterations {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, r, http.StatusBadRequest, "too_many_iterations", "iterations limit exceeded")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// reader goroutine: a client close or error cancels the simulation
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	frames := make(chan StreamFrame, streamBuf)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeFrames(ctx, conn, frames)
	}()

	res, err := s.deps.Service.MonteCarlo(ctx, symbol, req.Config(), func(sample montecarlo.Sample) {
		select {
		case frames <- StreamFrame{Type: "sample", Sample: &sample}:
		case <-ctx.Done():
		}
	})

	switch {
	case res != nil:
		summary := *res
		summary.Samples = nil
		frames <- StreamFrame{Type: "result", Result: &summary}
	case err != nil:
		frames <- StreamFrame{Type: "error", Error: err.Error()}
	}
	close(frames)
	wg.Wait()

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}

// writeFrames is the only goroutine writing data frames to conn
func (s *Server) writeFrames(ctx context.Context, conn *websocket.Conn, frames <-chan StreamFrame) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if ctx.Err() != nil && f.Type == "sample" {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				log.Debug().Err(err).Msg("Websocket write failed")
				drain(frames)
				return
			}
		case <-ping.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
	}
}

func drain(frames <-chan StreamFrame) {
	for range frames {
	}
}
