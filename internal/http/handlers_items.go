package http

import (
	"net/http"

	"eventledger/internal/core"
)

const (
	msgResponsibleNotFound = "Responsible not found"
	msgExpenseNotFound     = "Expense not found"
	msgIncomeNotFound      = "Income not found"
)

func (s *Server) handleAddResponsible(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		_ = BadRequestError("Invalid request body").Write(w)
		return
	}
	resp, err := s.ledger.AddResponsible(r.Context(), owner(r), eventID, p.Get("name"))
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateResponsible(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	id, ok2 := pathID(r, "rid")
	if !ok || !ok2 {
		_ = NotFoundError(msgResponsibleNotFound).Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		_ = BadRequestError("Invalid request body").Write(w)
		return
	}
	resp, err := s.ledger.UpdateResponsible(r.Context(), owner(r), eventID, id, p.Get("name"))
	if err != nil {
		writeError(w, r, err, msgResponsibleNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteResponsible(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	id, ok2 := pathID(r, "rid")
	if !ok || !ok2 {
		_ = NotFoundError(msgResponsibleNotFound).Write(w)
		return
	}
	if err := s.ledger.DeleteResponsible(r.Context(), owner(r), eventID, id); err != nil {
		writeError(w, r, err, msgResponsibleNotFound)
		return
	}
	_ = SuccessResponse().Write(w)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	in, err := parseExpenseInput(r)
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	expense, err := s.ledger.AddExpense(r.Context(), owner(r), eventID, in)
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgExpenseNotFound).Write(w)
		return
	}
	in, err := parseExpenseInput(r)
	if err != nil {
		writeError(w, r, err, msgExpenseNotFound)
		return
	}
	expense, err := s.ledger.UpdateExpense(r.Context(), owner(r), id, in)
	if err != nil {
		writeError(w, r, err, msgExpenseNotFound)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgExpenseNotFound).Write(w)
		return
	}
	if err := s.ledger.DeleteExpense(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err, msgExpenseNotFound)
		return
	}
	_ = SuccessResponse().Write(w)
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	in, err := parseIncomeInput(r)
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	income, err := s.ledger.AddIncome(r.Context(), owner(r), eventID, in)
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, income)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgIncomeNotFound).Write(w)
		return
	}
	in, err := parseIncomeInput(r)
	if err != nil {
		writeError(w, r, err, msgIncomeNotFound)
		return
	}
	income, err := s.ledger.UpdateIncome(r.Context(), owner(r), id, in)
	if err != nil {
		writeError(w, r, err, msgIncomeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, income)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgIncomeNotFound).Write(w)
		return
	}
	if err := s.ledger.DeleteIncome(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err, msgIncomeNotFound)
		return
	}
	_ = SuccessResponse().Write(w)
}

// parseExpenseInput reads an expense body. Range checks happen in the ledger.
func parseExpenseInput(r *http.Request) (core.ExpenseInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.ExpenseInput{}, &core.ValidationError{Field: "body", Reason: "is not valid JSON or form data"}
	}
	in := core.ExpenseInput{
		Category: core.Category(p.Get("category")),
		Name:     p.Get("name"),
	}
	var err error
	if in.Quantity, err = p.Float("quantity"); err != nil {
		return in, err
	}
	if in.CostPerUnit, err = p.Float("cost_per_unit"); err != nil {
		return in, err
	}
	if in.SellingPricePerUnit, err = p.OptionalFloat("selling_price_per_unit"); err != nil {
		return in, err
	}
	return in, nil
}

func parseIncomeInput(r *http.Request) (core.IncomeInput, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.IncomeInput{}, &core.ValidationError{Field: "body", Reason: "is not valid JSON or form data"}
	}
	in := core.IncomeInput{Name: p.Get("name")}
	var err error
	if in.Quantity, err = p.Float("quantity"); err != nil {
		return in, err
	}
	if in.PricePerUnit, err = p.Float("price_per_unit"); err != nil {
		return in, err
	}
	return in, nil
}
