package api

import (
	"net/http"
)

func (h *Handler) getTarget(w http.ResponseWriter, r *http.Request) {
	id, err := targetIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.store.ResolveTarget(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TargetToAPI(h.store.Codec(), t))
}

func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.store.ListSchemas(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[TargetView]{Items: TargetsToAPI(h.store.Codec(), schemas)})
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	id, err := targetIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tables, err := h.store.ListTables(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[TargetView]{Items: TargetsToAPI(h.store.Codec(), tables)})
}

func (h *Handler) listColumns(w http.ResponseWriter, r *http.Request) {
	id, err := targetIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	columns, err := h.store.ListColumns(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[TargetView]{Items: TargetsToAPI(h.store.Codec(), columns)})
}
