// Package httpapi wires the chi router, CORS, and the three handlers the
// core backs: symbol search, bar history, and health. Router/middleware
// wiring follows the example corpus's chi+cors server shape, with zerolog
// request logging in place of slog.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/yitech/barstream/internal/cache"
	"github.com/yitech/barstream/internal/clock"
	"github.com/yitech/barstream/internal/history"
	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/poller"
	"github.com/yitech/barstream/internal/provider"
)

// Deps bundles the collaborators the HTTP handlers read from.
type Deps struct {
	Provider        provider.Provider
	History         *history.Aggregator
	Cache           cache.Cache
	Clock           *clock.Clock
	Poller          *poller.Poller
	CacheBackend    string
	HistoryMaxLimit int
	CORSOrigins     []string
	Logger          zerolog.Logger
}

// NewRouter builds the chi router serving /symbols/search, /bars/history,
// and /health, with request logging, panic recovery, and CORS.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(zerologMiddleware(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/symbols/search", searchSymbolsHandler(d))
	r.Get("/bars/history", historyHandler(d))
	r.Get("/health", healthHandler(d))

	return r
}

func zerologMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type symbolSearchResponse struct {
	Items []model.SymbolInfo `json:"items"`
}

// searchSymbolsHandler: empty q returns an empty list rather than the full
// directory; limit defaults to 20, clamped to [1, 50], per original_source.
func searchSymbolsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeJSON(w, http.StatusOK, symbolSearchResponse{Items: []model.SymbolInfo{}})
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		if limit < 1 {
			limit = 1
		}
		if limit > 50 {
			limit = 50
		}

		items, err := d.Provider.SearchSymbols(r.Context(), q, limit)
		if err != nil {
			writeError(w, http.StatusBadGateway, "symbol search failed")
			return
		}
		writeJSON(w, http.StatusOK, symbolSearchResponse{Items: items})
	}
}

type historyResponse struct {
	Symbol   string      `json:"symbol"`
	Period   string      `json:"period"`
	Items    []model.Bar `json:"items"`
	NextFrom *int64      `json:"next_from"`
}

func historyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		symbol := q.Get("symbol")
		periodStr := q.Get("period")
		fromStr := q.Get("from")
		toStr := q.Get("to")
		if symbol == "" || periodStr == "" || fromStr == "" || toStr == "" {
			writeError(w, http.StatusBadRequest, "symbol, period, from, and to are required")
			return
		}
		period := model.Period(periodStr)

		limit := 2000
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		if limit < 1 {
			limit = 1
		}
		if limit > d.HistoryMaxLimit {
			limit = d.HistoryMaxLimit
		}

		cacheKey := "history:" + symbol + ":" + periodStr + ":" + fromStr + ":" + toStr + ":" + strconv.Itoa(limit)
		var cached historyResponse
		if ok, _ := d.Cache.Get(r.Context(), cacheKey, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}

		var items []model.Bar
		var err error
		switch {
		case history.IsDailyPeriod(period):
			from, perr := history.ParseDateOrDateTime(fromStr, true, d.Clock.Location())
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid date format")
				return
			}
			to, perr := history.ParseDateOrDateTime(toStr, true, d.Clock.Location())
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid date format")
				return
			}
			items, err = d.History.GetDaily(r.Context(), symbol, period, from, to)
		case history.IsMinutePeriod(period):
			from, perr := history.ParseDateOrDateTime(fromStr, false, d.Clock.Location())
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid datetime format")
				return
			}
			to, perr := history.ParseDateOrDateTime(toStr, false, d.Clock.Location())
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid datetime format")
				return
			}
			if to.Before(from) {
				writeError(w, http.StatusBadRequest, "invalid range")
				return
			}
			items, err = d.History.GetMinute(r.Context(), symbol, period, from, to)
		default:
			writeError(w, http.StatusBadRequest, "unsupported period")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "history fetch failed")
			return
		}

		if len(items) > limit {
			items = items[:limit]
		}
		var nextFrom *int64
		if len(items) > 0 {
			n := items[len(items)-1].Ts + 1
			nextFrom = &n
		}

		resp := historyResponse{Symbol: symbol, Period: periodStr, Items: items, NextFrom: nextFrom}
		ttl := 10 * time.Minute
		if history.IsDailyPeriod(period) {
			ttl = 6 * time.Hour
		}
		_ = d.Cache.Set(r.Context(), cacheKey, resp, ttl)
		writeJSON(w, http.StatusOK, resp)
	}
}

type healthResponse struct {
	Status              string `json:"status"`
	Time                string `json:"time"`
	CacheBackend        string `json:"cache_backend"`
	Timezone            string `json:"timezone"`
	TradingCalendarSize int    `json:"trading_calendar_size"`
	PollerRunning       bool   `json:"poller_running"`
}

func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:              "ok",
			Time:                time.Now().UTC().Format(time.RFC3339),
			CacheBackend:        d.CacheBackend,
			Timezone:            d.Clock.Location().String(),
			TradingCalendarSize: d.Clock.CalendarSize(),
			PollerRunning:       d.Poller.Running(),
		})
	}
}
