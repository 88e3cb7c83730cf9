package httpapi

import (
	"net/http"

	"weekly-planner/internal/planner"
	"weekly-planner/internal/shared"
	"weekly-planner/internal/shopping"
)

type successResponse struct {
	Success bool `json:"success"`
}

type moveResponse struct {
	Success bool            `json:"success"`
	Fresh   []shopping.Item `json:"fresh"`
	Pantry  []shopping.Item `json:"pantry"`
}

type appendResponse struct {
	ID int64 `json:"id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			logger(r.Context()).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRandomize(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())
	query := r.URL.Query()

	req := planner.RandomizeRequest{
		HouseholdID: hid,
		Count:       planner.ParseCount(query.Get("count"), s.defaultCount),
	}
	if query.Has("week") || query.Has("year") {
		week, err := intParam(query.Get("week"), "week", "missing_week", "invalid_week")
		if err != nil {
			writeError(w, r, err)
			return
		}
		year, err := intParam(query.Get("year"), "year", "missing_year", "invalid_year")
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Week, req.Year = week, year
	}

	res, err := s.planner.Randomize(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())

	year, err := intParam(r.PathValue("year"), "year", "missing_year", "invalid_year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := intParam(r.PathValue("week"), "week", "missing_week", "invalid_week")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.shopping.List(r.Context(), shopping.Scope{HouseholdID: hid, Week: week, Year: year})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())

	f, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := f.integer("week", "missing_week", "invalid_week")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := f.integer("year", "missing_year", "invalid_year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := f.str("name", "missing_name", "invalid_name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ingredientID, err := f.optionalInteger("knownIngredientId", "invalid_ingredient")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fresh, err := f.optionalBoolean("fresh", "invalid_bucket")
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := shopping.AppendRequest{
		HouseholdID:       hid,
		Week:              clampInt(week),
		Year:              clampInt(year),
		Name:              name,
		KnownIngredientID: ingredientID,
	}
	if fresh != nil {
		b := shopping.BucketFromFresh(*fresh)
		req.Bucket = &b
	}

	id, err := s.shopping.Append(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appendResponse{ID: id})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())

	f, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := f.integer("id", "missing_id", "invalid_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fresh, err := f.boolean("fresh", "missing_bucket", "invalid_bucket")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sort, err := f.integer("sort", "missing_sort", "invalid_sort")
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := f.integer("week", "missing_week", "invalid_week")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := f.integer("year", "missing_year", "invalid_year")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.shopping.Move(r.Context(), shopping.MoveRequest{
		HouseholdID: hid,
		ID:          id,
		Bucket:      shopping.BucketFromFresh(fresh),
		Sort:        clampInt(sort),
		Week:        clampInt(week),
		Year:        clampInt(year),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Success: true, Fresh: res.Fresh, Pantry: res.Pantry})
}

func (s *Server) handleSetPurchased(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())

	id, err := itemID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := f.integer("week", "missing_week", "invalid_week")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := f.integer("year", "missing_year", "invalid_year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	purchased, err := f.boolean("purchased", "missing_purchased", "invalid_purchased")
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = s.shopping.SetPurchased(r.Context(), shopping.PurchaseRequest{
		HouseholdID: hid,
		ID:          id,
		Week:        clampInt(week),
		Year:        clampInt(year),
		Purchased:   purchased,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	hid, _ := HouseholdFrom(r.Context())

	id, err := itemID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	week, err := intParam(query.Get("week"), "week", "missing_week", "invalid_week")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := intParam(query.Get("year"), "year", "missing_year", "invalid_year")
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = s.shopping.Delete(r.Context(), shopping.DeleteRequest{HouseholdID: hid, ID: id, Week: week, Year: year})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func itemID(r *http.Request) (int64, error) {
	id, err := intParam(r.PathValue("id"), "id", "missing_id", "invalid_id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, shared.Validation("invalid_id", "id must be a positive integer")
	}
	return int64(id), nil
}
