package controllers

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"tallyd/internal/engine"
	"tallyd/internal/models"
	"tallyd/internal/providers"
	"tallyd/internal/services"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger  providers.Logger
	service services.AggregateServiceInterface
	toggles services.ConfigServiceInterface
	eng     *engine.Engine
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, service services.AggregateServiceInterface, toggles services.ConfigServiceInterface, eng *engine.Engine, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		toggles: toggles,
		eng:     eng,
		cache:   cache,
	}
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, bool)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, found := compute()
	if !found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) GetAggregate(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("u")
	if userID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "agg:"+userID, func() (any, bool) {
		agg, ok := ac.service.GetUserAggregate(userID)
		return agg, ok
	})
}

func (ac *ApiController) GetOpenSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("u")
	guildID := r.URL.Query().Get("g")
	if userID == "" || guildID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	session, ok := ac.eng.GetOpenSession(userID, guildID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("g")
	metric := r.URL.Query().Get("m")
	if metric == "" {
		metric = models.MetricCallSeconds
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	cacheKey := "lb:" + guildID + ":" + metric + ":" + strconv.Itoa(limit)
	ac.serveFromCacheOrCompute(w, cacheKey, func() (any, bool) {
		return ac.service.Leaderboard(guildID, metric, limit), true
	})
}

func (ac *ApiController) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("u")
	if userID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "hm:"+userID, func() (any, bool) {
		agg, ok := ac.service.GetUserAggregate(userID)
		if !ok || agg.Heatmap == nil {
			return nil, false
		}
		return agg.Heatmap.Grid(), true
	})
}

type eventBatch struct {
	Presence []*models.PresenceEvent `json:"presence"`
	Messages []*models.MessageEvent  `json:"messages"`
}

// ReceiveEvents ingests normalized events over HTTP, the alternate
// source next to the gateway adapter. Invalid events inside the batch
// are counted and dropped by the engine, not bounced to the caller.
func (ac *ApiController) ReceiveEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var batch eventBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	for _, ev := range batch.Presence {
		ac.eng.ProcessPresence(ev)
	}
	for _, ev := range batch.Messages {
		ac.eng.ProcessMessage(ev)
	}
	w.WriteHeader(http.StatusAccepted)
}

// EraseAggregate handles an explicit data-erasure request.
func (ac *ApiController) EraseAggregate(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("u")
	if userID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !ac.service.Erase(userID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	ac.cache.Del("agg:" + userID)
	ac.cache.Del("hm:" + userID)
	ac.logger.Infof(providers.TypeHttp, "erased aggregate for user %s", userID)
	w.WriteHeader(http.StatusNoContent)
}

type guildConfigRequest struct {
	GuildID string `json:"guild_id"`
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

func (ac *ApiController) SetGuildConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req guildConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GuildID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !ac.toggles.SetGuildFeature(req.GuildID, req.Feature, req.Enabled) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type optOutRequest struct {
	UserID string `json:"user_id"`
	OptOut bool   `json:"opt_out"`
}

func (ac *ApiController) SetOptOut(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req optOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.toggles.SetOptOut(req.UserID, req.OptOut)
	w.WriteHeader(http.StatusNoContent)
}
