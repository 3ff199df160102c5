package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/store"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

type viewKey struct {
	mode    model.ViewMode
	date    string
	version uint64
}

type cachedView struct {
	body      any
	updatedAt time.Time
}

// viewResponse wraps a built layout with the snapshot it was built from.
type viewResponse struct {
	Version  uint64 `json:"version"`
	Timezone string `json:"timezone"`
	View     any    `json:"view"`
}

type eventsResponse struct {
	Version uint64        `json:"version"`
	Events  []model.Event `json:"events"`
}

// eventInput is the POST /api/events body.
type eventInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Location    string           `json:"location"`
	Category    model.Category   `json:"category"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	AllDay      bool             `json:"all_day"`
	Attendees   []model.Attendee `json:"attendees"`
}

func (in eventInput) event() model.Event {
	return model.Event{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Category:    in.Category,
		Start:       in.Start,
		End:         in.End,
		AllDay:      in.AllDay,
		Attendees:   in.Attendees,
	}
}

// handleView returns a month, week, day or agenda layout as JSON.
//
// GET /api/view?mode=week&date=2025-05-06
//   - mode: month (default), week, day or agenda
//   - date: reference day in the display timezone (default today)
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	mode, date, err := s.parseViewQuery(r.URL.Query().Get("mode"), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.store.Snapshot()
	key := viewKey{mode: mode, date: date.Format(dateLayout), version: snap.Version}

	s.viewsMu.RLock()
	cv, ok := s.views[key]
	s.viewsMu.RUnlock()
	if ok && s.now().Sub(cv.updatedAt) < viewCacheTTL {
		writeJSON(w, http.StatusOK, cv.body)
		return
	}

	view, err := layout.Build(mode, snap.Events, date, s.opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := viewResponse{Version: snap.Version, Timezone: s.opts.Location.String(), View: view}

	s.cacheView(key, resp)

	appLog.Debug("api view built", "mode", mode, "date", key.date, "version", snap.Version)
	writeJSON(w, http.StatusOK, resp)
}

// cacheView stores resp under key. Expired entries are dropped first; when
// the cache is still full it starts over.
func (s *Server) cacheView(key viewKey, resp any) {
	now := s.now()

	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()
	for k, cv := range s.views {
		if now.Sub(cv.updatedAt) >= viewCacheTTL {
			delete(s.views, k)
		}
	}
	if len(s.views) >= maxCachedViews {
		clear(s.views)
	}
	s.views[key] = cachedView{body: resp, updatedAt: now}
}

// parseViewQuery applies the defaults shared by the API and the page.
func (s *Server) parseViewQuery(modeStr, dateStr string) (model.ViewMode, time.Time, error) {
	mode := model.ViewMonth
	if modeStr != "" {
		m, err := model.ParseViewMode(modeStr)
		if err != nil {
			return "", time.Time{}, err
		}
		mode = m
	}

	if dateStr == "" {
		return mode, layout.StartOfDay(s.now().In(s.opts.Location)), nil
	}
	date, err := time.ParseInLocation(dateLayout, dateStr, s.opts.Location)
	if err != nil {
		return "", time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return mode, date, nil
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	events := make([]model.Event, len(snap.Events))
	copy(events, snap.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	writeJSON(w, http.StatusOK, eventsResponse{Version: snap.Version, Events: events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in eventInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := s.store.Add(in.event())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event created", "id", e.ID, "title", e.Title)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	p, err := parsePatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	e, err := s.store.Update(id, p.apply)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event updated", "id", id)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		writeStoreError(w, err)
		return
	}
	appLog.Info("event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.styles.Entries())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calgrid.ics"`)
	if err := ics.Export(w, snap.Events, ""); err != nil {
		appLog.Error("ics export failed", err, "version", snap.Version)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	initial, err := json.Marshal(snapshotMessage(s.store.Snapshot()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}
	s.hub.Handle(w, r, initial)
}

// writeStoreError maps model and store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidEventRange):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrMissingTitle):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type wsMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
}

func snapshotMessage(snap store.Snapshot) wsMessage {
	return wsMessage{Type: "snapshot", Version: snap.Version, Count: len(snap.Events)}
}
