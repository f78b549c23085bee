package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/certificate"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/registry"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/util"
)

// ListCertificates handles GET /v1/certificates with limit and cursor
// pagination.
func (h *handlers) ListCertificates(w http.ResponseWriter, r *http.Request) {
	limit := util.ParseLimit(r, registry.DefaultListLimit, registry.MaxListLimit)
	after := util.ParseCursor(r)

	page, err := h.svc.ListCertificates(r.Context(), limit, after)
	if err != nil {
		writeOwnershipError(w, err)
		return
	}

	resp := map[string]any{
		"items": page.Records,
	}
	if page.NextCursor != "" {
		resp["next_cursor"] = util.EncodeCursor(page.NextCursor)
	}
	util.WriteJSON(w, http.StatusOK, resp)
}

// GetCertificate handles GET /v1/certificates/{certHash}.
func (h *handlers) GetCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.svc.GetCertificate(r.Context(), chi.URLParam(r, "certHash"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			util.WriteError(w, http.StatusNotFound, "not_found", "certificate not found")
			return
		}
		writeOwnershipError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, cert)
}

// GetCertificateLatest handles GET /v1/certificates/{certHash}/latest. The
// optional edition query parameter asks how a claimed edition hash relates
// to the chain. An absent certificate is a 200 with exists=false; the
// endpoint answers the existence question rather than failing it.
func (h *handlers) GetCertificateLatest(w http.ResponseWriter, r *http.Request) {
	check, err := h.svc.CheckEdition(r.Context(), chi.URLParam(r, "certHash"), r.URL.Query().Get("edition"))
	if err != nil {
		writeOwnershipError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, check)
}

// GetCertificateHistory handles GET /v1/certificates/{certHash}/history.
// Rows come back oldest first; each stored value is decoded per row so one
// corrupt historical value does not hide the rest of the chain.
func (h *handlers) GetCertificateHistory(w http.ResponseWriter, r *http.Request) {
	mods, err := h.svc.History(r.Context(), chi.URLParam(r, "certHash"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			util.WriteError(w, http.StatusNotFound, "not_found", "certificate not found")
			return
		}
		writeOwnershipError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(mods))
	for _, m := range mods {
		row := map[string]any{
			"tx_id":     m.TxID,
			"timestamp": m.Timestamp,
			"is_delete": m.IsDelete,
		}
		if cert, derr := certificate.Decode(m.Value); derr == nil {
			row["certificate"] = cert
		} else if len(m.Value) > 0 {
			row["raw"] = m.Value
		}
		items = append(items, row)
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
