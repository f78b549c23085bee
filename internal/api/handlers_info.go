package api

import (
	"net/http"
	"time"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/crypto"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/util"
)

func (h *handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handlers) GetMeta(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"name":         "landchain registry",
		"version":      "0.1",
		"service_time": time.Now().UTC().Format(time.RFC3339),
		"capabilities": map[string]any{
			"signature_algos": []string{
				crypto.SchemeEd25519,
				crypto.SchemeECDSAP256,
				crypto.SchemeSecp256k1,
				crypto.SchemeRSA,
			},
			"participant_roles": []string{"buyer", "seller", "owner"},
			"canonical_json":    "RFC8785-JCS",
		},
	}
	util.WriteJSON(w, http.StatusOK, resp)
}
