package formulashandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/formula"
	"paycalc/internal/transport/http/api"
	"paycalc/internal/transport/http/middleware"
	"paycalc/internal/transport/http/shared"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/formulas", func(r chi.Router) {
		r.Post("/validate", h.handleValidate)
		r.Post("/evaluate", h.handleEvaluate)
	})
}

type formulaPayload struct {
	Formula   string             `json:"formula"`
	Variables map[string]float64 `json:"variables"`
}

type evaluateResponse struct {
	Result      float64  `json:"result"`
	Identifiers []string `json:"identifiers"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var payload formulaPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	api.Success(w, formula.Validate(payload.Formula), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var payload formulaPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Formula) == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", formula.MsgEmptyFormula, middleware.GetRequestID(r.Context()))
		return
	}

	expr, err := formula.Compile(payload.Formula)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	result, err := expr.Eval(payload.Variables)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, evaluateResponse{Result: result, Identifiers: expr.Identifiers()}, middleware.GetRequestID(r.Context()))
}
