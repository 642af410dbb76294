package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/auth"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers binds the HTTP surface to the services.
type Handlers struct {
	engine   *service.TransferEngine
	accounts *service.AccountService
	log      *zap.SugaredLogger
}

func NewHandlers(engine *service.TransferEngine, accounts *service.AccountService, log *zap.SugaredLogger) *Handlers {
	return &Handlers{engine: engine, accounts: accounts, log: log}
}

func RegisterHandlers(r *gin.Engine, h *Handlers, authn gin.HandlerFunc) {
	v1 := r.Group("/v1", authn)
	{
		v1.POST("/accounts", h.openAccount)
		v1.GET("/accounts/me", h.getAccount)
		v1.DELETE("/accounts/me", h.deactivate)
		v1.GET("/accounts/me/balance", h.balance)
		v1.PUT("/accounts/me/pin", h.changePIN)

		v1.POST("/deposits", h.deposit)
		v1.POST("/transfers", h.transfer)
		v1.POST("/withdrawals", h.withdraw)

		v1.GET("/transactions/:reference", h.getTransaction)
		v1.GET("/history", h.history)

		approver := v1.Group("/transactions/:reference", RequireRole(auth.RoleApprover))
		approver.POST("/confirm", h.confirm)
		approver.POST("/status", h.setStatus)
	}
}

// parseAmount accepts "30", "30.5" or "30.50".
func parseAmount(c *gin.Context, s string) (decimal.Decimal, bool) {
	amt, err := decimal.NewFromString(s)
	if err != nil {
		badRequest(c, "invalid amount")
		return decimal.Zero, false
	}
	return amt, true
}

// idempotencyKey prefers the body field and falls back to the header.
func idempotencyKey(c *gin.Context, body string) string {
	if body != "" {
		return body
	}
	return c.GetHeader("Idempotency-Key")
}

type openAccountReq struct {
	AccountName string `json:"account_name"`
	PIN         string `json:"pin" binding:"required"`
}

func (h *Handlers) openAccount(c *gin.Context) {
	var req openAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.accounts.OpenAccount(c, principal(c).UserID, req.AccountName, req.PIN)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handlers) getAccount(c *gin.Context) {
	a, err := h.accounts.GetAccount(c, principal(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handlers) deactivate(c *gin.Context) {
	if err := h.accounts.Deactivate(c, principal(c).UserID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) balance(c *gin.Context) {
	b, err := h.accounts.GetBalance(c, principal(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type changePINReq struct {
	PIN    string `json:"pin" binding:"required"`
	NewPIN string `json:"new_pin" binding:"required"`
}

func (h *Handlers) changePIN(c *gin.Context) {
	var req changePINReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.accounts.ChangePIN(c, principal(c).UserID, req.PIN, req.NewPIN); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type depositReq struct {
	Amount          string `json:"amount" binding:"required"`
	Currency        string `json:"currency"`
	Method          string `json:"method" binding:"required"`
	AccountType     string `json:"account_type" binding:"required"`
	ProofReference  string `json:"proof_reference"`
	ProofReference2 string `json:"proof_reference_2"`
	Description     string `json:"description"`
	IdempotencyKey  string `json:"idempotency_key"`
}

func (h *Handlers) deposit(c *gin.Context) {
	var req depositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amt, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	t, err := h.engine.CreateDeposit(c, principal(c).UserID, service.DepositRequest{
		Amount:          amt,
		Currency:        req.Currency,
		Method:          model.Method(req.Method),
		AccountType:     model.SubAccount(req.AccountType),
		ProofReference:  req.ProofReference,
		ProofReference2: req.ProofReference2,
		Description:     req.Description,
		IdempotencyKey:  idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type beneficiaryReq struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	SwiftCode     string `json:"swift_code"`
	RoutingNumber string `json:"routing_number"`
	Address       string `json:"address"`
}

type transferReq struct {
	Category                 string         `json:"category" binding:"required"`
	Amount                   string         `json:"amount" binding:"required"`
	Currency                 string         `json:"currency"`
	Method                   string         `json:"method"`
	AccountType              string         `json:"account_type" binding:"required"`
	BeneficiaryAccountNumber string         `json:"beneficiary_account_number"`
	Beneficiary              beneficiaryReq `json:"beneficiary"`
	PIN                      string         `json:"pin" binding:"required"`
	Description              string         `json:"description"`
	IdempotencyKey           string         `json:"idempotency_key"`
}

func (h *Handlers) transfer(c *gin.Context) {
	var req transferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amt, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	user := principal(c).UserID
	key := idempotencyKey(c, req.IdempotencyKey)

	var (
		t   *model.Transaction
		err error
	)
	switch model.Category(req.Category) {
	case model.CategoryTransferInternal:
		if req.Method != "" && model.Method(req.Method) != model.MethodInternal {
			writeError(c, h.log, apperr.ErrCategoryMethodMismatch)
			return
		}
		t, err = h.engine.CreateInternalTransfer(c, user, service.InternalTransferRequest{
			Amount:                   amt,
			AccountType:              model.SubAccount(req.AccountType),
			BeneficiaryAccountNumber: req.BeneficiaryAccountNumber,
			PIN:                      req.PIN,
			Description:              req.Description,
			IdempotencyKey:           key,
		})
	case model.CategoryTransferExternal:
		t, err = h.engine.CreateExternalTransfer(c, user, service.ExternalTransferRequest{
			Amount:         amt,
			Currency:       req.Currency,
			Method:         model.Method(req.Method),
			AccountType:    model.SubAccount(req.AccountType),
			Beneficiary:    service.Beneficiary(req.Beneficiary),
			PIN:            req.PIN,
			Description:    req.Description,
			IdempotencyKey: key,
		})
	default:
		badRequest(c, "category must be transfer_internal or transfer_external")
		return
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type withdrawReq struct {
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency"`
	Method         string `json:"method" binding:"required"`
	AccountType    string `json:"account_type" binding:"required"`
	PIN            string `json:"pin" binding:"required"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handlers) withdraw(c *gin.Context) {
	var req withdrawReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amt, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	t, err := h.engine.CreateWithdrawal(c, principal(c).UserID, service.WithdrawalRequest{
		Amount:         amt,
		Currency:       req.Currency,
		Method:         model.Method(req.Method),
		AccountType:    model.SubAccount(req.AccountType),
		PIN:            req.PIN,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handlers) getTransaction(c *gin.Context) {
	t, err := h.engine.GetTransaction(c, c.Param("reference"), principal(c).UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) history(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}
	rows, err := h.engine.ListHistory(c, principal(c).UserID, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handlers) confirm(c *gin.Context) {
	if err := h.engine.ConfirmDeposit(c, c.Param("reference")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func (h *Handlers) setStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	t, err := h.engine.SetStatus(c, c.Param("reference"), model.Status(req.Status), req.Note)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
