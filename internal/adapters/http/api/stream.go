package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/touchline/internal/adapters/broadcast"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/metrics"
)

const (
	replayPageSize    = 500
	keepAliveInterval = 15 * time.Second
)

// StreamDependencies defines what the observer stream needs.
type StreamDependencies interface {
	Events(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error)
	Subscribe(matchID string) *broadcast.Subscription
}

// StreamHandler serves match notifications as Server-Sent Events.
type StreamHandler struct {
	deps StreamDependencies
	log  logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies, log logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, log: log}
}

// HandleStream handles GET /matches/{matchId}/stream?after=N. Persisted
// events with sequence > N are replayed first, then live notifications
// follow without repeating replayed sequences. Events missing between two
// live notifications are read back from the event log, so observers see
// every sequence in order. A subscriber that falls behind receives a
// final "resync" event and is disconnected.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.stream"
	ctx := r.Context()
	matchID := r.PathValue("matchId")
	after, err := queryInt(r, "after")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Subscribe before replaying so nothing falls between the two.
	sub := h.deps.Subscribe(matchID)
	defer sub.Close()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last, err := h.replay(ctx, w, matchID, after)
	if err != nil {
		h.log.Warn(ctx, "stream replay failed", logger.String("match_id", matchID), logger.Error(err))
		metrics.RecordErrorByComponent("stream", "replay")
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				if sub.Lagged() {
					_ = writeSSE(w, "resync", 0, map[string]string{"matchId": matchID})
					_ = rc.Flush()
				}
				return
			}
			if n.Kind == model.NotifyEventAdded {
				if n.Sequence > last+1 {
					// A notification went missing; fill in from the event log.
					if last, err = h.replay(ctx, w, matchID, last); err != nil {
						h.log.Warn(ctx, "stream backfill failed", logger.String("match_id", matchID), logger.Error(err))
						metrics.RecordErrorByComponent("stream", "backfill")
						return
					}
					metrics.RecordErrorByComponent("stream", "gap")
					if err := rc.Flush(); err != nil {
						return
					}
				}
				if n.Sequence <= last {
					continue
				}
				last = n.Sequence
			}
			if err := writeSSE(w, string(n.Kind), n.Sequence, n); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// replay writes persisted events after the given sequence and returns the
// last sequence written.
func (h *StreamHandler) replay(ctx context.Context, w http.ResponseWriter, matchID string, after int64) (int64, error) {
	last := after
	for {
		evs, err := h.deps.Events(ctx, matchID, last, replayPageSize)
		if err != nil {
			return last, WrapKind("api.stream_replay", ErrStream, err)
		}
		for i := range evs {
			n := model.Notification{
				Kind:     model.NotifyEventAdded,
				MatchID:  matchID,
				Sequence: evs[i].Sequence,
				Event:    &evs[i],
				At:       evs[i].Timestamp,
			}
			if err := writeSSE(w, string(n.Kind), n.Sequence, n); err != nil {
				return last, err
			}
			last = evs[i].Sequence
		}
		if len(evs) < replayPageSize {
			return last, nil
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return nil
}
