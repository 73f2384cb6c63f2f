package main

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/liamcoop/churn/auth"
	"github.com/liamcoop/churn/customer"
	"github.com/liamcoop/churn/internal/logger"
	"github.com/liamcoop/churn/predictor"
)

//go:embed templates/index.html
var templateFS embed.FS

// apiKeyField is the form input carrying the API key
const apiKeyField = "api_key"

const subtitle = "Churn Prediction using Random Forest Model"

// formDefaults are the values the form starts with
var formDefaults = map[string]string{
	"creditScore":     "600",
	"geography":       string(customer.France),
	"gender":          string(customer.Male),
	"age":             "35",
	"tenure":          "5",
	"balance":         "0.0",
	"numOfProducts":   "1",
	"hasCreditCard":   "0",
	"isActiveMember":  "0",
	"estimatedSalary": "50000.0",
}

type pageData struct {
	Title       string
	Subtitle    string
	APIKeyField string
	APIKeyHint  string
	Values      map[string]string
	Geographies []customer.Geography
	Genders     []customer.Gender
	Error       string
	Success     string
	ResultJSON  string
	FieldErrors map[string]string
}

func parsePage() (*template.Template, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse form template: %w", err)
	}
	return page, nil
}

func (s *Server) newPage(values map[string]string) *pageData {
	return &pageData{
		Title:       s.cfg.Title(),
		Subtitle:    subtitle,
		APIKeyField: apiKeyField,
		APIKeyHint:  auth.HeaderName,
		Values:      values,
		Geographies: customer.Geographies(),
		Genders:     customer.Genders(),
		FieldErrors: map[string]string{},
	}
}

// Form page handler
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	values := make(map[string]string, len(formDefaults))
	for k, v := range formDefaults {
		values[k] = v
	}
	s.renderPage(w, http.StatusOK, s.newPage(values))
}

// Form submission handler
func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form", err)
		return
	}

	values := make(map[string]string, len(formDefaults))
	raw := make(map[string]any, len(formDefaults))
	for _, name := range customer.FieldNames() {
		v := r.PostForm.Get(name)
		values[name] = v
		raw[name] = v
	}

	page := s.newPage(values)
	outcome, err := s.service.Predict(r.PostForm.Get(apiKeyField), raw)
	if err != nil {
		page.Error = iconFor(err) + predictor.Message(err)
		var verr *customer.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				page.FieldErrors[v.Field] = v.Message
			}
		}
		s.renderPage(w, statusOf(err), page)
		return
	}

	result, err := json.MarshalIndent(outcome.Result, "", "  ")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode result", err)
		return
	}
	page.Success = predictor.MessageCompleted + " ✅"
	page.ResultJSON = string(result)
	s.renderPage(w, http.StatusOK, page)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		logger.Error("failed to render form", "error", err)
	}
}

// iconFor picks the status icon shown before a message
func iconFor(err error) string {
	switch {
	case auth.IsMissing(err):
		return "❌ "
	case auth.IsMismatch(err):
		return "🚫 "
	default:
		return "⚠️ "
	}
}
