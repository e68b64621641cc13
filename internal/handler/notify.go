package handler

import (
	"encoding/json"
	"net/http"
)

type notifyRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	AssignedBy string `json:"assigned_by"`
}

func decodeNotifyRequest(w http.ResponseWriter, r *http.Request) (*notifyRequest, bool) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return nil, false
	}
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "email and name are required")
		return nil, false
	}
	return &req, true
}

// NotifyApproval отправляет заявителю письмо об одобрении заявки.
func (h *Handler) NotifyApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotifyRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.SendApprovalEmail(r.Context(), req.Email, req.Name); err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// NotifyRejection отправляет заявителю письмо об отклонении заявки.
func (h *Handler) NotifyRejection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotifyRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.SendRejectionEmail(r.Context(), req.Email, req.Name); err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// NotifyLeadership отправляет уведомление о назначении на руководящую должность.
func (h *Handler) NotifyLeadership(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNotifyRequest(w, r)
	if !ok {
		return
	}

	if req.Position == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "position is required")
		return
	}

	if err := h.service.SendLeadershipEmail(r.Context(), req.Email, req.Name, req.Position, req.AssignedBy); err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
