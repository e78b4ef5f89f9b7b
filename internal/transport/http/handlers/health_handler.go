package handlers

import (
	"net/http"

	httperrors "github.com/ivankudzin/roadreport/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, httperrors.OK{OK: true})
}
