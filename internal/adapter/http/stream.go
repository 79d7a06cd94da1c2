package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/realtime"
)

const (
	streamBuffer    = 32
	streamKeepAlive = 25 * time.Second
)

var streamTables = map[string]bool{
	domain.TableRiverLevels:      true,
	domain.TableFloodPredictions: true,
	domain.TableWeatherData:      true,
}

// handleChanges streams change events for one table as server-sent events.
// Events that arrive while the client is behind are dropped. The stream ends
// when the client goes away or the server shuts down.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if !streamTables[table] {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
		return
	}
	filter := realtime.AllEvents
	if r.URL.Query().Get("elevated") == "true" {
		filter, _ = realtime.ElevatedFilter(table)
	}

	events := make(chan domain.ChangeEvent, streamBuffer)
	unsubscribe, err := s.api.Changes.Subscribe(table, filter, func(ev domain.ChangeEvent) {
		select {
		case events <- ev:
		default:
			s.logger.Warn("change stream client behind, event dropped", "table", table)
		}
	})
	if err != nil {
		s.logger.Error("subscribe change stream failed", "table", table, "error", err)
		writeError(w, http.StatusServiceUnavailable, "change feed unavailable")
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s %s\n\n", table, filter.Name)
	if err := rc.Flush(); err != nil {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("encode change event failed", "table", table, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
