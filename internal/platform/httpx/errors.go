package httpx

import (
	"net/http"

	"github.com/solara-mfi/solara/internal/fault"
)

// RespondError translates a core fault kind into an RFC7807 response.
// Internal faults deliberately expose no detail.
func RespondError(w http.ResponseWriter, err error) {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case fault.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case fault.KindStateConflict:
		Problem(w, http.StatusConflict, "State Conflict", err.Error())
	case fault.KindAccountNotConfigured:
		Problem(w, http.StatusUnprocessableEntity, "Account Not Configured", err.Error())
	case fault.KindConcurrency:
		Problem(w, http.StatusConflict, "Concurrent Update", "operation lost a concurrent update race; retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
