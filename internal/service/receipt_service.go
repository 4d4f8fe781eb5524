// Package service exposes the receipt-splitting pipeline over a JSON
// HTTP API consumed by the interactive assignment UI.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/auth"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/middleware"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/money"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/parser"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/reconcile"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/render"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/session"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/storage"
)

var (
	receiptsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billsplitter_receipts_parsed_total",
		Help: "Receipts successfully parsed into sessions.",
	})
	parseWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billsplitter_parse_warnings_total",
		Help: "Recoverable warnings emitted while parsing receipts.",
	})
	allocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billsplitter_allocations_total",
		Help: "Allocation runs completed successfully.",
	})
)

// ReceiptService wires the parser, reconciliation checker and allocation
// engine to session storage.
type ReceiptService struct {
	store  storage.Store
	tokens *auth.TokenManager
}

// NewReceiptService creates a service over the given storage backend.
func NewReceiptService(store storage.Store, tokens *auth.TokenManager) *ReceiptService {
	return &ReceiptService{store: store, tokens: tokens}
}

// Routes registers the API handlers on the mux. Session-scoped routes
// require a Bearer token minted at session creation.
func (s *ReceiptService) Routes(mux *http.ServeMux) {
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSession(s.tokens, h)
	}
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.Handle("GET /api/v1/sessions/{id}", protected(s.handleGetSession))
	mux.Handle("PUT /api/v1/sessions/{id}/assignment", protected(s.handleReplaceAssignment))
	mux.Handle("POST /api/v1/sessions/{id}/items", protected(s.handleAddItem))
	mux.Handle("POST /api/v1/sessions/{id}/summary", protected(s.handleSummary))
	mux.Handle("DELETE /api/v1/sessions/{id}", protected(s.handleDeleteSession))
}

type createSessionRequest struct {
	// Text is the raw receipt text, UTF-8, newline-delimited, as handed
	// over by the external document decoder.
	Text string `json:"text"`

	// Members are the people splitting this receipt.
	Members []string `json:"members"`
}

type createSessionResponse struct {
	SessionID string                `json:"sessionId"`
	Token     string                `json:"token"`
	Version   int64                 `json:"version"`
	OrderDate string                `json:"orderDate,omitempty"`
	Items     []itemDTO             `json:"items"`
	Totals    totalsDTO             `json:"totals"`
	Warnings  []models.ParseWarning `json:"warnings"`
	Anomalies []models.Anomaly      `json:"anomalies"`
}

type itemDTO struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     string `json:"unitPrice"`
	ExtendedPrice string `json:"extendedPrice"`
	Discount      string `json:"discount,omitempty"`
	NetPrice      string `json:"netPrice"`
	Taxable       bool   `json:"taxable"`
	WeightBased   bool   `json:"weightBased,omitempty"`
	Custom        bool   `json:"custom,omitempty"`
	Corrected     bool   `json:"corrected,omitempty"`
	PriceUnparsed bool   `json:"priceUnparsed,omitempty"`
	SourceLine    int    `json:"sourceLine,omitempty"`
}

type totalsDTO struct {
	Subtotal         string `json:"subtotal"`
	Tax              string `json:"tax"`
	GrandTotal       string `json:"grandTotal"`
	DeclaredSubtotal bool   `json:"declaredSubtotal"`
	DeclaredTax      bool   `json:"declaredTax"`
	DeclaredTotal    bool   `json:"declaredTotal"`
}

func (s *ReceiptService) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	parsed, err := parser.Parse(req.Text)
	var empty *parser.EmptyReceiptError
	if errors.As(err, &empty) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	report := reconcile.Check(parsed.Items, parsed.Totals)

	sess := &session.Session{
		ID:         uuid.New().String(),
		OrderDate:  parsed.OrderDate,
		Members:    req.Members,
		Items:      report.Items,
		Assignment: models.Assignment{},
		Totals:     parsed.Totals,
		Warnings:   parsed.Warnings,
		Anomalies:  report.Anomalies,
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		slog.Error("CreateSession failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to store session"))
		return
	}

	token, err := s.tokens.Generate(sess.ID)
	if err != nil {
		slog.Error("Token generation failed", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to issue session token"))
		return
	}

	receiptsParsed.Inc()
	parseWarnings.Add(float64(len(sess.Warnings)))
	slog.Info("Session created",
		"session_id", sess.ID,
		"items", len(sess.Items),
		"warnings", len(sess.Warnings),
		"anomalies", len(sess.Anomalies),
	)

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Version:   sess.Version,
		OrderDate: sess.OrderDate,
		Items:     itemDTOs(sess.Items),
		Totals:    totalsToDTO(sess.Totals),
		Warnings:  emptyIfNil(sess.Warnings),
		Anomalies: emptyIfNil(sess.Anomalies),
	})
}

type sessionResponse struct {
	SessionID  string                `json:"sessionId"`
	Version    int64                 `json:"version"`
	OrderDate  string                `json:"orderDate,omitempty"`
	Members    []string              `json:"members"`
	Items      []itemDTO             `json:"items"`
	Assignment assignmentDTO         `json:"assignment"`
	Totals     totalsDTO             `json:"totals"`
	Warnings   []models.ParseWarning `json:"warnings"`
	Anomalies  []models.Anomaly      `json:"anomalies"`
}

func (s *ReceiptService) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadAuthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:  sess.ID,
		Version:    sess.Version,
		OrderDate:  sess.OrderDate,
		Members:    sess.Members,
		Items:      itemDTOs(sess.Items),
		Assignment: assignmentToDTO(sess.Assignment),
		Totals:     totalsToDTO(sess.Totals),
		Warnings:   emptyIfNil(sess.Warnings),
		Anomalies:  emptyIfNil(sess.Anomalies),
	})
}

// assignmentDTO is the wire form of an assignment: item index (as a JSON
// object key) -> person -> weight.
type assignmentDTO map[string]map[string]decimal.Decimal

type replaceAssignmentRequest struct {
	// Version is the session version the client last read; the write is
	// rejected with 409 if someone else wrote in between.
	Version    int64         `json:"version"`
	Assignment assignmentDTO `json:"assignment"`
}

type replaceAssignmentResponse struct {
	Version int64 `json:"version"`
}

func (s *ReceiptService) handleReplaceAssignment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, id) {
		return
	}

	var req replaceAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	assignment, err := assignmentFromDTO(req.Assignment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	version, err := s.store.ReplaceAssignment(r.Context(), id, assignment, req.Version)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, session.ErrVersionConflict):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	slog.Debug("Assignment replaced", "session_id", id, "version", version)
	writeJSON(w, http.StatusOK, replaceAssignmentResponse{Version: version})
}

type addItemRequest struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Total    string `json:"total"`
	Taxable  bool   `json:"taxable"`
}

type addItemResponse struct {
	Index int     `json:"index"`
	Item  itemDTO `json:"item"`
}

func (s *ReceiptService) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, id) {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	total, err := money.Parse(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := models.NewCustomItem(req.Name, req.Quantity, total, req.Taxable)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	idx, err := s.store.AddItem(r.Context(), id, item)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		slog.Error("AddItem failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to store item"))
		return
	}

	slog.Info("Custom item added", "session_id", id, "index", idx, "name", item.Name)
	writeJSON(w, http.StatusCreated, addItemResponse{Index: idx, Item: itemToDTO(idx, item)})
}

type personSummaryDTO struct {
	PersonID  string          `json:"personId"`
	ItemShare string          `json:"itemShare"`
	TaxShare  string          `json:"taxShare"`
	Total     string          `json:"total"`
	Items     []personItemDTO `json:"items"`
}

type personItemDTO struct {
	Name   string          `json:"name"`
	Weight decimal.Decimal `json:"weight"`
	Share  string          `json:"share"`
}

type summaryResponse struct {
	Version     int64              `json:"version"`
	Persons     []personSummaryDTO `json:"persons"`
	GrandTotal  string             `json:"grandTotal"`
	TaxableBase string             `json:"taxableBase"`
	Residual    string             `json:"residual"`
	Anomalies   []models.Anomaly   `json:"anomalies"`
	Text        string             `json:"text"`
}

func (s *ReceiptService) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadAuthorized(w, r)
	if !ok {
		return
	}

	result, err := sess.Allocate()
	if err != nil {
		// Allocation preconditions: unassigned items, empty assignee
		// sets, non-positive weights.
		writeError(w, http.StatusBadRequest, err)
		return
	}
	allocations.Inc()

	persons := make([]personSummaryDTO, 0, len(result.Summaries))
	for _, person := range sortedPersons(result) {
		sum := result.Summaries[person]
		items := make([]personItemDTO, 0, len(sum.Items))
		for _, it := range sum.Items {
			items = append(items, personItemDTO{Name: it.Name, Weight: it.Weight, Share: it.Share.String()})
		}
		persons = append(persons, personSummaryDTO{
			PersonID:  sum.PersonID,
			ItemShare: sum.ItemShare.String(),
			TaxShare:  sum.TaxShare.String(),
			Total:     sum.Total.String(),
			Items:     items,
		})
	}

	slog.Info("Summary computed",
		"session_id", sess.ID,
		"persons", len(persons),
		"grand_total", result.GrandTotal,
		"residual", result.Residual,
	)

	writeJSON(w, http.StatusOK, summaryResponse{
		Version:     sess.Version,
		Persons:     persons,
		GrandTotal:  result.GrandTotal.String(),
		TaxableBase: result.TaxableBase.String(),
		Residual:    result.Residual.String(),
		Anomalies:   emptyIfNil(sess.Anomalies),
		Text:        render.Summary(sess.OrderDate, sess.Members, result),
	})
}

func (s *ReceiptService) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.authorize(w, r, id) {
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		slog.Error("DeleteSession failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to delete session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize checks that the request token is scoped to the addressed
// session.
func (s *ReceiptService) authorize(w http.ResponseWriter, r *http.Request, id string) bool {
	if middleware.GetSessionID(r.Context()) != id {
		writeError(w, http.StatusForbidden, errors.New("token is not valid for this session"))
		return false
	}
	return true
}

func (s *ReceiptService) loadAuthorized(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	if !s.authorize(w, r, id) {
		return nil, false
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		slog.Error("GetSession failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to load session"))
		return nil, false
	}
	return sess, true
}

func itemDTOs(items []models.LineItem) []itemDTO {
	out := make([]itemDTO, len(items))
	for i, item := range items {
		out[i] = itemToDTO(i, item)
	}
	return out
}

func itemToDTO(idx int, item models.LineItem) itemDTO {
	dto := itemDTO{
		Index:         idx,
		Name:          item.Name,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice.String(),
		ExtendedPrice: item.ExtendedPrice.String(),
		NetPrice:      item.NetPrice().String(),
		Taxable:       item.Taxable,
		WeightBased:   item.WeightBased,
		Custom:        item.Custom,
		Corrected:     item.Corrected,
		PriceUnparsed: item.PriceUnparsed,
		SourceLine:    item.SourceLine,
	}
	if item.Discount != 0 {
		dto.Discount = item.Discount.String()
	}
	return dto
}

func totalsToDTO(t models.ReceiptTotals) totalsDTO {
	return totalsDTO{
		Subtotal:         t.Subtotal.String(),
		Tax:              t.Tax.String(),
		GrandTotal:       t.GrandTotal.String(),
		DeclaredSubtotal: t.DeclaredSubtotal,
		DeclaredTax:      t.DeclaredTax,
		DeclaredTotal:    t.DeclaredTotal,
	}
}

func assignmentToDTO(a models.Assignment) assignmentDTO {
	out := make(assignmentDTO, len(a))
	for idx, people := range a {
		m := make(map[string]decimal.Decimal, len(people))
		for person, w := range people {
			m[person] = w
		}
		out[strconv.Itoa(idx)] = m
	}
	return out
}

func assignmentFromDTO(dto assignmentDTO) (models.Assignment, error) {
	out := make(models.Assignment, len(dto))
	for key, people := range dto {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid item index %q", key)
		}
		m := make(map[string]decimal.Decimal, len(people))
		for person, w := range people {
			m[person] = w
		}
		out[idx] = m
	}
	return out, nil
}

func sortedPersons(res *models.AllocationResult) []string {
	persons := make([]string, 0, len(res.Summaries))
	for p := range res.Summaries {
		persons = append(persons, p)
	}
	sort.Strings(persons)
	return persons
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
