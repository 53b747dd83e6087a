package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"staffplan/internal/cache"
	"staffplan/internal/calendar"
	"staffplan/internal/log"
	"staffplan/internal/services"
	"staffplan/internal/state"
)

const (
	reportFinance   = "finance"
	reportWriteOffs = "writeoffs"
	reportWorkload  = "workload"

	defaultWorkloadWeeks = 12
	minYear, maxYear     = 2000, 2100
)

var errBadQuery = errors.New("invalid query parameter")

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	year, err := s.parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vat, err := parseBool(r, "vat", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%d:vat=%t", year, vat)
	s.serveReport(w, r, reportFinance, year, s.financeCache, key, func(snap *state.Snapshot) any {
		return s.reports.Finance(snap, year, vat)
	})
}

func (s *Server) handleWriteOffs(w http.ResponseWriter, r *http.Request) {
	year, err := s.parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.serveReport(w, r, reportWriteOffs, year, s.writeOffCache, strconv.Itoa(year), func(snap *state.Snapshot) any {
		return s.reports.WriteOffs(snap, year)
	})
}

func (s *Server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	from := s.reports.Today()
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		d, err := calendar.ParseISODateLocal(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: from must be YYYY-MM-DD", errBadQuery))
			return
		}
		from = d
	}

	weeks := defaultWorkloadWeeks
	if v := strings.TrimSpace(r.URL.Query().Get("weeks")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > services.MaxWorkloadWeeks {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%v: weeks must be between 1 and %d", errBadQuery, services.MaxWorkloadWeeks))
			return
		}
		weeks = n
	}

	start := calendar.StartOfISOWeek(from)
	key := fmt.Sprintf("%s:%d", calendar.FormatISO(start), weeks)
	s.serveReport(w, r, reportWorkload, start.Year(), s.workloadCache, key, func(snap *state.Snapshot) any {
		return s.reports.Workload(snap, start, weeks)
	})
}

// serveReport answers from cache or computes the report once per key,
// however many requests ask for it concurrently. Entries are keyed by the
// state generation and the current ISO week, since fact hours of a week
// are filled in once it has elapsed.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, kind string, year int,
	c cache.Cache[[]byte], key string, compute func(*state.Snapshot) any) {
	ctx := r.Context()
	gen := s.generation.Load()
	week := calendar.FormatISO(calendar.StartOfISOWeek(s.reports.Today()))
	cacheKey := fmt.Sprintf("%d|%s|%s", gen, week, key)

	if body, ok := c.Get(cacheKey); ok {
		s.cacheHits.Add(1)
		s.events.LogReport(ctx, kind, year, true)
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	v, err, _ := s.flight.Do(kind+"|"+cacheKey, func() (any, error) {
		s.cacheMisses.Add(1)
		// The load outlives any single waiting request.
		snap, _, err := s.state.LoadSnapshot(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(compute(snap))
		if err != nil {
			return nil, fmt.Errorf("encode %s report: %w", kind, err)
		}
		if s.generation.Load() == gen {
			c.Set(cacheKey, body)
		}
		return body, nil
	})
	if err != nil {
		s.events.LogError(ctx, "Failed to build report", err, log.ComponentReports, log.OpReport,
			log.NewFields().WithReport(kind, year))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.events.LogReport(ctx, kind, year, false)
	writeRawJSON(w, http.StatusOK, v.([]byte))
}

func (s *Server) parseYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return s.reports.CurrentYear(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < minYear || year > maxYear {
		return 0, fmt.Errorf("%w: year must be between %d and %d", errBadQuery, minYear, maxYear)
	}
	return year, nil
}

func parseBool(r *http.Request, name string, def bool) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errBadQuery, name)
	}
	return b, nil
}
