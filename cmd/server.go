package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/etnz/aurum"
	"github.com/gorilla/mux"
)

// Router returns the HTTP API of the application.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.health).Methods("GET")
	r.HandleFunc("/holdings", a.getHoldings).Methods("GET")
	r.HandleFunc("/assets", a.postAsset).Methods("POST")
	r.HandleFunc("/assets/{id}", a.getAsset).Methods("GET")
	r.HandleFunc("/assets/{id}/tax", a.getTax).Methods("GET")
	r.HandleFunc("/assets/{id}/transfer", a.postTransfer).Methods("POST")
	r.HandleFunc("/prices/{month}", a.getPrice).Methods("GET")
	r.Handle("/metrics", a.Metrics.Handler()).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, aurum.ErrInvalidAsset), errors.Is(err, aurum.ErrInvalidTransfer), errors.Is(err, aurum.ErrPriceUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, aurum.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, aurum.ErrSessionUnrecoverable):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= 500 {
		a.Logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": a.Session.State().String()})
}

func (a *App) getHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledgerIdentity, err := a.LedgerIdentity(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	owner, err := a.Owner(ctx, r.URL.Query().Get("owner"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	snap, err := a.Holdings.Get(ctx, ledgerIdentity, owner, refresh)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		aurum.Snapshot
		Stale    bool     `json:"stale,omitempty"`
		Warnings []string `json:"warnings,omitempty"`
	}{snap, snap.Stale, snap.Warnings})
}

func (a *App) find(r *http.Request) (aurum.AssetRecord, error) {
	ledgerIdentity, err := a.LedgerIdentity(r.Context())
	if err != nil {
		return aurum.AssetRecord{}, err
	}
	return a.Resolver.Find(r.Context(), ledgerIdentity, mux.Vars(r)["id"])
}

func (a *App) getAsset(w http.ResponseWriter, r *http.Request) {
	rec, err := a.find(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *App) getTax(w http.ResponseWriter, r *http.Request) {
	engine := *a.Tax
	if b := r.URL.Query().Get("basis"); b != "" {
		basis, err := aurum.ParseBasis(b)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		engine.Basis = basis
	}
	rec, err := a.find(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	report, err := engine.Compute(rec)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type transferRequest struct {
	To   string `json:"to"`
	Date string `json:"date"`
}

func (a *App) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	rec, err := a.Tracker.TransferOwnership(r.Context(), mux.Vars(r)["id"], req.To, req.Date)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type registerRequest struct {
	Owner string `json:"owner"`
	aurum.Registration
}

func (a *App) postAsset(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	ctx := r.Context()
	ledgerIdentity, err := a.LedgerIdentity(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	owner, err := a.Owner(ctx, req.Owner)
	if err != nil {
		a.writeError(w, err)
		return
	}
	rec, err := a.Registrar.Register(ctx, owner, ledgerIdentity, req.Registration)
	if err != nil && rec.UniqueIdentifier == "" {
		a.writeError(w, err)
		return
	}
	if err != nil {
		a.Logger.Warn("asset registered without store record", "id", rec.UniqueIdentifier, "error", err)
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *App) getPrice(w http.ResponseWriter, r *http.Request) {
	p, err := a.Prices.LookupPrice(mux.Vars(r)["month"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
