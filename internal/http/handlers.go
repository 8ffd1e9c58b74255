package http

import (
	"net/http"
	"strconv"

	"kopilka/internal/core"
)

// ---- Notifications ----

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFrom(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.storage.Queries().ListNotifications(r.Context(), ownerID, unreadOnly, 100)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.storage.Queries().MarkNotificationRead(r.Context(), ownerFrom(r.Context()), id); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Queries().MarkAllNotificationsRead(r.Context(), ownerFrom(r.Context())); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ---- Achievements ----

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := s.storage.Queries().ListAchievements(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, achievements)
}

// ---- Accounts ----

type createAccountRequest struct {
	Name     string `json:"name"`
	Balance  string `json:"balance,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.storage.Queries().ListAccounts(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}

	var balance int64
	if req.Balance != "" {
		cents, err := core.ParseDecimalToCents(req.Balance)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid balance")
			return
		}
		balance = cents
	}
	currency := req.Currency
	if currency == "" {
		currency = "RUB"
	}

	account, err := s.storage.Queries().CreateAccount(r.Context(), core.Account{
		OwnerID:  ownerFrom(r.Context()),
		Name:     req.Name,
		Balance:  core.Money{Cents: balance},
		Currency: currency,
		Active:   true,
	})
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

// ---- Transactions ----

type transactionRequest struct {
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	Direction  string `json:"direction"`
	CategoryID *int64 `json:"category_id,omitempty"`
	AccountID  *int64 `json:"account_id,omitempty"`
	Note       string `json:"note,omitempty"`
}

func (s *Server) transactionFromRequest(r *http.Request, req transactionRequest) (core.Transaction, error) {
	date, err := parseDateField(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		OwnerID:    ownerFrom(r.Context()),
		Date:       date,
		Amount:     core.Money{Cents: cents},
		Direction:  core.Direction(req.Direction),
		CategoryID: req.CategoryID,
		AccountID:  req.AccountID,
		Note:       req.Note,
		Source:     core.SourceManual,
	}, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	transactions, err := s.storage.Queries().ListTransactions(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.transactionFromRequest(r, req)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.transactionFromRequest(r, req)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	t.ID = id

	if err := s.ledger.UpdateTransaction(r.Context(), t); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := s.ledger.ReverseTransaction(r.Context(), ownerFrom(r.Context()), id); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ---- Recurring rules ----

type ruleRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	Frequency   string `json:"frequency"`
	CategoryID  *int64 `json:"category_id,omitempty"`
	AccountID   *int64 `json:"account_id,omitempty"`
	Note        string `json:"note,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.storage.Queries().ListRules(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	startDate, err := parseDateField(req.StartDate)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid start_date")
		return
	}
	rule := core.RecurringRule{
		OwnerID:     ownerFrom(r.Context()),
		Description: req.Description,
		Amount:      core.Money{Cents: cents},
		Direction:   core.Direction(req.Direction),
		Frequency:   core.Frequency(req.Frequency),
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
		Note:        req.Note,
		StartDate:   startDate,
		NextDueDate: startDate,
		Active:      true,
	}
	if req.EndDate != "" {
		endDate, err := parseDateField(req.EndDate)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid end_date")
			return
		}
		rule.EndDate = &endDate
	}
	if err := rule.Validate(); err != nil {
		respondStorageError(w, err)
		return
	}

	created, err := s.storage.Queries().CreateRule(r.Context(), rule)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := s.storage.Queries().DeleteRule(r.Context(), ownerFrom(r.Context()), id); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// ---- Debts ----

type debtPaymentRequest struct {
	Amount            string `json:"amount"`
	Date              string `json:"date,omitempty"`
	CreateTransaction bool   `json:"create_transaction,omitempty"`
}

func (s *Server) handleRegisterDebtPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid debt id")
		return
	}
	var req debtPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	paidOn := core.Day(s.clock.Now())
	if req.Date != "" {
		if paidOn, err = parseDateField(req.Date); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "invalid date")
			return
		}
	}

	debt, err := s.debts.RegisterPayment(r.Context(), ownerFrom(r.Context()), id, cents, paidOn, req.CreateTransaction)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, debt)
}
