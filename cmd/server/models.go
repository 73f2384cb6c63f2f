package main

import (
	"github.com/liamcoop/churn/artifacts"
	"github.com/liamcoop/churn/customer"
	"github.com/liamcoop/churn/inference"
)

// API Request and Response Models with Swagger annotations

// PredictRequest is the body of POST /api/v1/predict. The handler decodes it
// into a generic map so type errors are reported per field.
type PredictRequest struct {
	CreditScore     int     `json:"creditScore" example:"600"`
	Geography       string  `json:"geography" example:"France" enums:"France,Germany,Spain"`
	Gender          string  `json:"gender" example:"Male" enums:"Male,Female"`
	Age             int     `json:"age" example:"35" minimum:"18" maximum:"100"`
	Tenure          int     `json:"tenure" example:"5" minimum:"0" maximum:"10"`
	Balance         float64 `json:"balance" example:"0" minimum:"0"`
	NumOfProducts   int     `json:"numOfProducts" example:"1" minimum:"1" maximum:"4"`
	HasCreditCard   int     `json:"hasCreditCard" example:"1" enums:"0,1"`
	IsActiveMember  int     `json:"isActiveMember" example:"0" enums:"0,1"`
	EstimatedSalary float64 `json:"estimatedSalary" example:"50000" minimum:"0"`
} // @name PredictRequest

// PredictResponse is returned for a successful prediction
type PredictResponse struct {
	RequestID string           `json:"requestId" example:"123e4567-e89b-12d3-a456-426614174000"`
	Record    customer.Fields  `json:"record"`
	Result    inference.Result `json:"result"`
	ModelName string           `json:"modelName" example:"churn-forest"`
} // @name PredictResponse

// ValidationErrorResponse lists every invalid field
type ValidationErrorResponse struct {
	Error      string               `json:"error" example:"validation failed"`
	Violations []customer.Violation `json:"violations"`
} // @name ValidationErrorResponse

// UnauthorizedResponse is returned when the API key is missing or wrong
type UnauthorizedResponse struct {
	Error  string `json:"error" example:"unauthorized"`
	Reason string `json:"reason" example:"mismatch" enums:"missing,mismatch"`
} // @name UnauthorizedResponse

// ErrorResponse is the generic error body
type ErrorResponse struct {
	Error   string `json:"error" example:"prediction failed"`
	Details string `json:"details,omitempty" example:"predict: X has 12 features, but forest is expecting 13 features as input"`
} // @name ErrorResponse

// HealthResponse reports service liveness
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
	Model  string `json:"model" example:"churn-forest"`
} // @name HealthResponse

// ModelResponse describes the loaded artifacts
type ModelResponse struct {
	ModelName       string         `json:"modelName" example:"churn-forest"`
	FeatureContract string         `json:"featureContract" example:"v1"`
	Features        []string       `json:"features"`
	Preprocessor    artifacts.Info `json:"preprocessor"`
	Classifier      artifacts.Info `json:"classifier"`
} // @name ModelResponse
