package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
	"flat-crawler-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CrawlerHandler обслуживает browsing и административные endpoints.
type CrawlerHandler struct {
	findFlatsUC usecases_port.FindFlatsPort
	rateFlatUC  usecases_port.RateFlatPort
	matchUC     usecases_port.MatchPostsPort
	rematchUC   usecases_port.RematchPostsPort
	resetUC     usecases_port.ResetMatchingPort
	crawlUC     usecases_port.CrawlSourcePort
	crawlAllUC  usecases_port.CrawlAllPort
	locationsUC usecases_port.FindLocationsPort
}

// NewCrawlerHandler - конструктор.
func NewCrawlerHandler(findFlatsUC usecases_port.FindFlatsPort,
	rateFlatUC usecases_port.RateFlatPort,
	matchUC usecases_port.MatchPostsPort,
	rematchUC usecases_port.RematchPostsPort,
	resetUC usecases_port.ResetMatchingPort,
	crawlUC usecases_port.CrawlSourcePort,
	crawlAllUC usecases_port.CrawlAllPort,
	locationsUC usecases_port.FindLocationsPort) *CrawlerHandler {
	return &CrawlerHandler{
		findFlatsUC: findFlatsUC,
		rateFlatUC:  rateFlatUC,
		matchUC:     matchUC,
		rematchUC:   rematchUC,
		resetUC:     resetUC,
		crawlUC:     crawlUC,
		crawlAllUC:  crawlAllUC,
		locationsUC: locationsUC,
	}
}

// GetFlats обрабатывает GET /api/v1/flats
func (h *CrawlerHandler) GetFlats(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetFlats"})

	q := r.URL.Query()
	var filters domain.FlatFilters

	if v := q.Get("min_price"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			filters.MinPrice = &p
		}
	}
	if v := q.Get("max_price"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			filters.MaxPrice = &p
		}
	}
	if v := q.Get("district"); v != "" {
		filters.District = &v
	}
	if v := q.Get("rated"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.Rated = &b
		}
	}
	if v := q.Get("exclude_rejected"); v != "" {
		filters.ExcludeRejected, _ = strconv.ParseBool(v)
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, err := h.findFlatsUC.Execute(r.Context(), filters, limit, offset)
	if err != nil {
		logger.Error("Find flats use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve flats")
		return
	}

	dtos := make([]FlatListItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, FlatListItemDTO{
			ID:           item.Flat.ID,
			Heading:      item.Heading,
			URL:          item.URL,
			MinPrice:     item.Flat.MinPrice,
			SizeM2:       item.SizeM2,
			District:     item.District,
			PostsCount:   item.PostsCount,
			LastPostedAt: item.LastPostedAt,
			Hearted:      item.Flat.Hearted,
			Starred:      item.Flat.Starred,
			Rejected:     item.Flat.Rejected,
		})
	}
	RespondWithJSON(w, http.StatusOK, dtos)
}

// RateFlat обрабатывает POST /api/v1/flats/{flatID}/rate
func (h *CrawlerHandler) RateFlat(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RateFlat"})

	flatID, err := uuid.Parse(chi.URLParam(r, "flatID"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid flat ID")
		return
	}

	var req RateFlatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.rateFlatUC.Execute(r.Context(), flatID, domain.RatingKind(req.Kind), req.Ticked); err != nil {
		logger.Error("Rate flat use case failed", err, port.Fields{"flat_id": flatID.String()})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to rate flat")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLocations обрабатывает GET /api/v1/locations
func (h *CrawlerHandler) GetLocations(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetLocations"})

	district := r.URL.Query().Get("district")
	if district == "" {
		WriteJSONError(w, http.StatusBadRequest, "district query parameter is required")
		return
	}

	locations, err := h.locationsUC.Execute(r.Context(), district)
	if err != nil {
		logger.Error("Find locations use case failed", err, port.Fields{"district": district})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to look up locations")
		return
	}

	dtos := make([]LocationDTO, 0, len(locations))
	for _, loc := range locations {
		dtos = append(dtos, LocationDTO{
			ID:        loc.ID,
			City:      loc.City,
			FullName:  loc.FullName,
			ShortName: loc.ShortName,
			Lat:       loc.Lat,
			Lng:       loc.Lng,
			Geohash:   loc.Geohash,
		})
	}
	RespondWithJSON(w, http.StatusOK, dtos)
}

// RunMatching обрабатывает POST /api/v1/matching/run
func (h *CrawlerHandler) RunMatching(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RunMatching"})

	summary, err := h.matchUC.Execute(r.Context(), uuid.Nil)
	if err != nil {
		logger.Error("Match use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Matching run failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// RematchPosts обрабатывает POST /api/v1/matching/rematch
func (h *CrawlerHandler) RematchPosts(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RematchPosts"})

	var req RematchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.PostIDs) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "post_ids must not be empty")
		return
	}

	summary, err := h.rematchUC.Execute(r.Context(), uuid.Nil, req.PostIDs)
	if err != nil {
		logger.Error("Rematch use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Rematch run failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// ResetMatching обрабатывает POST /api/v1/matching/reset
func (h *CrawlerHandler) ResetMatching(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ResetMatching"})

	if err := h.resetUC.Execute(r.Context()); err != nil {
		logger.Error("Reset matching use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Reset failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunCrawl обрабатывает POST /api/v1/crawl
func (h *CrawlerHandler) RunCrawl(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RunCrawl"})

	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Source == "" {
		WriteJSONError(w, http.StatusBadRequest, "name and source are required")
		return
	}

	query := domain.CrawlQuery{
		Name:         req.Name,
		Source:       domain.Source(req.Source),
		District:     req.District,
		MinPrice:     req.MinPrice,
		MaxPrice:     req.MaxPrice,
		MinSizeM2:    req.MinSizeM2,
		MaxSizeM2:    req.MaxSizeM2,
		LookbackDays: req.LookbackDays,
		PageLimit:    req.PageLimit,
	}

	report, err := h.crawlUC.Execute(r.Context(), query, uuid.Nil)
	if err != nil {
		logger.Error("Crawl use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Crawl run failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, toCrawlReportDTO(report))
}

// RunCrawlAll обрабатывает POST /api/v1/crawl/all
func (h *CrawlerHandler) RunCrawlAll(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RunCrawlAll"})

	reports, err := h.crawlAllUC.Execute(r.Context(), uuid.Nil)
	if err != nil {
		logger.Error("Crawl all use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Crawl run failed")
		return
	}

	dtos := make([]CrawlReportDTO, 0, len(reports))
	for _, report := range reports {
		dtos = append(dtos, toCrawlReportDTO(report))
	}
	RespondWithJSON(w, http.StatusOK, dtos)
}

func toCrawlReportDTO(report *domain.CrawlReport) CrawlReportDTO {
	return CrawlReportDTO{
		Source:        string(report.Source),
		CrawlID:       report.CrawlID,
		StartDate:     report.StartDate,
		PagesFetched:  report.PagesFetched,
		NewPosts:      report.NewPosts,
		SkippedKnown:  report.SkippedKnown,
		FailedDetails: report.FailedDetails,
	}
}

func toSummaryDTO(summary *domain.MatchSummary) MatchSummaryDTO {
	return MatchSummaryDTO{
		Processed:     summary.Processed,
		Created:       summary.Created,
		Attached:      summary.Attached,
		Merged:        summary.Merged,
		Broken:        summary.Broken,
		FailedPostIDs: summary.FailedPostIDs,
	}
}
