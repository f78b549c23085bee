package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/ownership"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/core/transition"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/util"
)

// PostTransition handles POST /v1/transitions: one custody-transfer
// submission, answered with the committed certificate or a structured
// rejection.
func (h *handlers) PostTransition(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, string(ownership.KindMalformedInput), "failed to read body")
		return
	}
	if int64(len(body)) > h.maxBody {
		util.WriteError(w, http.StatusRequestEntityTooLarge, string(ownership.KindMalformedInput), "body too large")
		return
	}

	var req transition.Request
	if err := json.Unmarshal(body, &req); err != nil {
		util.WriteError(w, http.StatusBadRequest, string(ownership.KindMalformedInput), "invalid JSON: "+err.Error())
		return
	}

	rcpt, err := h.svc.SubmitTransition(r.Context(), &req)
	if err != nil {
		writeOwnershipError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, rcpt)
}

// statusFor maps a rejection kind to its HTTP status. Caller errors land in
// the 4xx range, infrastructure errors in the 5xx range, matching the retry
// semantics of each kind.
func statusFor(kind ownership.Kind) int {
	switch kind {
	case ownership.KindMalformedInput:
		return http.StatusBadRequest
	case ownership.KindSignatureInvalid:
		return http.StatusUnauthorized
	case ownership.KindOwnershipMismatch, ownership.KindDuplicateEdition:
		return http.StatusConflict
	case ownership.KindKeyResolutionFailure:
		return http.StatusBadGateway
	case ownership.KindSubstrateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeOwnershipError renders a validation rejection as the structured error
// envelope, naming the offending participant key where the rejection has
// one.
func writeOwnershipError(w http.ResponseWriter, err error) {
	var oerr *ownership.Error
	if !errors.As(err, &oerr) {
		util.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	msg := oerr.Message
	if oerr.Cause != nil {
		msg += ": " + oerr.Cause.Error()
	}
	status := statusFor(oerr.Kind)
	if oerr.KeyID != "" {
		util.WriteParticipantError(w, status, string(oerr.Kind), msg, oerr.KeyID)
		return
	}
	util.WriteError(w, status, string(oerr.Kind), msg)
}
