package http

import (
	"net/http"

	"github.com/edumall/edumall/pkg/enroll"
	"github.com/edumall/edumall/pkg/httpx"
)

type EnrollHandler struct {
	Wizard *enroll.Wizard
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type profileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// HandleOpen starts the dialog. An empty body opens it in login mode.
func (h *EnrollHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	req := modeRequest{Mode: string(enroll.ModeLogin)}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error(), h.Wizard.State())
		return
	}
	st, err := h.Wizard.Open(enroll.Mode(req.Mode))
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Wizard.State())
}

func (h *EnrollHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.Wizard.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (h *EnrollHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error(), h.Wizard.State())
		return
	}
	st, err := h.Wizard.SetMode(enroll.Mode(req.Mode))
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandlePhone(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error(), h.Wizard.State())
		return
	}
	st, err := h.Wizard.SubmitPhone(r.Context(), req.Phone)
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandleCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error(), h.Wizard.State())
		return
	}
	st, err := h.Wizard.SubmitCode(r.Context(), req.Code)
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	st, err := h.Wizard.Resend(r.Context())
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	st, err := h.Wizard.Back()
	writeState(w, r, st, err)
}

func (h *EnrollHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error(), h.Wizard.State())
		return
	}
	st, err := h.Wizard.SubmitProfile(r.Context(), req.FirstName, req.LastName, req.Email)
	writeState(w, r, st, err)
}
