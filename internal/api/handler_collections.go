package api

import (
	"net/http"

	"mdms/internal/domain"
	"mdms/internal/service/metadata"
)

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	collections, total, err := h.store.ListCollections(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]CollectionView, 0, len(collections))
	for _, c := range collections {
		items = append(items, CollectionToAPI(c))
	}
	writeJSON(w, http.StatusOK, ListResponse[CollectionView]{
		Items:         items,
		Total:         total,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	id, err := collectionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	detail, err := h.store.GetCollection(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionDetailToAPI(h.store.Codec(), detail))
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	var body CreateCollectionBody
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.store.CreateCollection(r.Context(), domain.CreateCollectionRequest{
		Name:        body.Name,
		Description: body.Description,
		Scope:       body.Scope,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CollectionToAPI(*c))
}

func (h *Handler) addConstraints(w http.ResponseWriter, r *http.Request) {
	id, err := collectionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body AddConstraintsBody
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(body.Constraints) == 0 {
		h.writeError(w, r, domain.ErrValidation("no constraints given"))
		return
	}
	res, err := h.store.Import(r.Context(), metadata.ImportRequest{
		CollectionID: id,
		Constraints:  body.Constraints,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddConstraintsResponse{
		CollectionID:  res.CollectionID,
		ConstraintIDs: res.ConstraintIDs,
	})
}
