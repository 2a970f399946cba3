package loans

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/loans/products"
	"github.com/solara-mfi/solara/internal/platform/httpx"
)

// Handler serves the lending boundary.
type Handler struct {
	service  *Service
	products *products.Service
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler builds the loans HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, productService *products.Service) *Handler {
	return &Handler{
		service:  service,
		products: productService,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// MountRoutes attaches lending routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/calculator/emi", h.CalculateEMI)
	r.Post("/calculator/schedule", h.PreviewSchedule)

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Get("/{code}", h.GetProduct)
		r.Put("/{code}", h.UpdateProduct)
	})

	r.Route("/applications", func(r chi.Router) {
		r.Post("/", h.CreateApplication)
		r.Get("/", h.ListApplications)
		r.Get("/{applicationID}", h.GetApplication)
		r.Post("/{applicationID}/approve", h.ApproveApplication)
		r.Post("/{applicationID}/reject", h.RejectApplication)
		r.Post("/{applicationID}/disburse", h.Disburse)
	})

	r.Route("/{loanID}", func(r chi.Router) {
		r.Get("/", h.GetLoan)
		r.Post("/payments", h.RecordPayment)
		r.Get("/payments", h.ListPayments)
		r.Get("/settlement", h.QuoteSettlement)
		r.Post("/settlement", h.ProcessSettlement)
	})
}

// CalculateEMI computes the EMI, total interest and total amount for the
// given terms without touching storage.
func (h *Handler) CalculateEMI(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	quote, err := h.service.CalculateEMI(req.terms())
	if err != nil {
		h.respondError(w, r, "calculate emi", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toQuoteResponse(quote))
}

// PreviewSchedule generates a repayment schedule preview.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	firstDue := h.now().AddDate(0, 1, 0)
	if req.FirstDueDate != nil {
		firstDue = *req.FirstDueDate
	}
	rows, err := h.service.PreviewSchedule(req.terms(), firstDue)
	if err != nil {
		h.respondError(w, r, "preview schedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toScheduleResponse(rows))
}

// CreateProduct registers a new loan product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p products.Product
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	created, err := h.products.Create(r.Context(), p)
	if err != nil {
		h.respondError(w, r, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

// UpdateProduct replaces a product definition.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p products.Product
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	p.Code = chi.URLParam(r, "code")
	updated, err := h.products.Update(r.Context(), p)
	if err != nil {
		h.respondError(w, r, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// GetProduct returns one product by code.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, r, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// ListProducts returns the full product catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		h.respondError(w, r, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// CreateApplication files a new loan application.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err := h.service.CreateApplication(r.Context(), ApplicationInput{
		ApplicantID:  req.ApplicantID,
		ProductCode:  req.ProductCode,
		Amount:       req.Amount,
		TenureMonths: req.TenureMonths,
		Purpose:      req.Purpose,
	})
	if err != nil {
		h.respondError(w, r, "create application", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toApplicationResponse(app))
}

// GetApplication returns one application.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get application", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApplicationResponse(app))
}

// ListApplications returns applications, optionally filtered by ?status=.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	status := ApplicationStatus(r.URL.Query().Get("status"))
	apps, err := h.service.ListApplications(r.Context(), status)
	if err != nil {
		h.respondError(w, r, "list applications", err)
		return
	}
	out := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// ApproveApplication moves an application to APPROVED.
func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	app, err := h.service.ApproveApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "approve application", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApplicationResponse(app))
}

// RejectApplication moves an application to REJECTED.
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	app, err := h.service.RejectApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "reject application", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApplicationResponse(app))
}

// Disburse converts an approved application into an active loan with its
// full installment schedule.
func (h *Handler) Disburse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	var req DisburseRequest
	if !h.decode(w, r, &req) {
		return
	}
	loan, err := h.service.Disburse(r.Context(), DisburseInput{
		ApplicationID: id,
		DisbursedAt:   req.DisbursedAt,
		FirstDueDate:  req.FirstDueDate,
	})
	if err != nil {
		h.respondError(w, r, "disburse", err)
		return
	}
	loan, installments, err := h.service.GetLoan(r.Context(), loan.ID)
	if err != nil {
		h.respondError(w, r, "disburse", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLoanResponse(loan, installments, h.now()))
}

// GetLoan returns a loan with its schedule; overdue status is derived at
// read time.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanID")
	if !ok {
		return
	}
	loan, installments, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get loan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan, installments, h.now()))
}

// RecordPayment applies a payment against one installment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanID")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	paymentReq := PaymentRequest{
		LoanID:        id,
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
	}
	if req.PaidAt != nil {
		paymentReq.PaidAt = *req.PaidAt
	}
	result, err := h.service.RecordPayment(r.Context(), paymentReq)
	if err != nil {
		h.respondError(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment: toPaymentResponse(result.Payment),
		Installment: InstallmentResponse{
			ID:         result.Installment.ID,
			Number:     result.Installment.Number,
			DueDate:    result.Installment.DueDate,
			Principal:  result.Installment.Principal.StringFixed(2),
			Interest:   result.Installment.Interest.StringFixed(2),
			Total:      result.Installment.Total.StringFixed(2),
			PaidAmount: result.Installment.PaidAmount.StringFixed(2),
			Status:     result.Installment.EffectiveStatus(h.now()),
			PaidAt:     result.Installment.PaidAt,
		},
		JournalEntryID: result.JournalEntryID,
	})
}

// ListPayments returns every payment recorded against a loan.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanID")
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "list payments", err)
		return
	}
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// QuoteSettlement returns the early payoff figure as of ?as_of= (RFC 3339
// date, default now) with optional ?rebate=.
func (h *Handler) QuoteSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanID")
	if !ok {
		return
	}
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be a YYYY-MM-DD date")
			return
		}
		asOf = parsed
	}
	rebate := decimal.Zero
	if raw := r.URL.Query().Get("rebate"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "rebate must be a number")
			return
		}
		rebate = parsed
	}
	quote, err := h.service.QuoteSettlement(r.Context(), id, asOf, rebate)
	if err != nil {
		h.respondError(w, r, "quote settlement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSettlementQuoteResponse(quote))
}

// ProcessSettlement settles the loan early in full.
func (h *Handler) ProcessSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loanID")
	if !ok {
		return
	}
	var req ProcessSettlementRequest
	if !h.decode(w, r, &req) {
		return
	}
	settlementReq := SettlementRequest{
		LoanID:    id,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Rebate:    req.Rebate,
	}
	if req.Date != nil {
		settlementReq.Date = *req.Date
	}
	result, err := h.service.ProcessSettlement(r.Context(), settlementReq)
	if err != nil {
		h.respondError(w, r, "process settlement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, SettlementResponse{
		Loan:           toLoanResponse(result.Loan, nil, h.now()),
		JournalEntryID: result.JournalEntryID,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if fault.KindOf(err) == fault.KindInternal {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
