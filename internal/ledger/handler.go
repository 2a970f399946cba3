package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/ledger/accounts"
	"github.com/solara-mfi/solara/internal/platform/httpx"
)

// Handler serves the ledger boundary.
type Handler struct {
	service  *Service
	accounts accounts.Repository
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler builds the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, accountsRepo accounts.Repository) *Handler {
	return &Handler{
		service:  service,
		accounts: accountsRepo,
		logger:   logger,
		validate: validator.New(),
	}
}

// MountRoutes attaches ledger routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/events", h.PostEvent)
	r.Get("/entries", h.ListEntries)
	r.Get("/entries/{entryID}", h.GetEntry)
	r.Get("/accounts", h.ListAccounts)
}

// PostEvent posts a standalone financial event as one journal entry.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req PostEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := PostEventInput{
		Type:             EventType(req.Type),
		Amount:           req.Amount,
		PrincipalPortion: req.PrincipalPortion,
		InterestPortion:  req.InterestPortion,
		Memo:             req.Memo,
	}
	if req.Date != nil {
		input.Date = *req.Date
	}

	entry, err := h.service.PostEvent(r.Context(), input)
	if err != nil {
		h.logError(r, "post event", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

// ListEntries returns recent journal entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logError(r, "list entries", err)
		httpx.RespondError(w, err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// GetEntry returns one journal entry with its lines.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be an integer")
		return
	}
	entry, err := h.service.Get(r.Context(), entryID)
	if err != nil {
		h.logError(r, "get entry", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

// ListAccounts returns the chart of accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.List(r.Context())
	if err != nil {
		h.logError(r, "list accounts", err)
		httpx.RespondError(w, err)
		return
	}
	out := make([]AccountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	if fault.KindOf(err) == fault.KindInternal {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
}
