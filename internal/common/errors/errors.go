package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeClaimValidationFailed ErrorCode = "CLAIM_VALIDATION_FAILED"
	ErrCodeCoverageNotFound      ErrorCode = "COVERAGE_NOT_FOUND"
	ErrCodeCoverageCheckFailed   ErrorCode = "COVERAGE_CHECK_FAILED"
	ErrCodeClaimDecisionFailed   ErrorCode = "CLAIM_DECISION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateRecord          ErrorCode = "DUPLICATE_RECORD"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeGeocodingFailed  ErrorCode = "GEOCODING_FAILED"
	ErrCodeGeocodingTimeout ErrorCode = "GEOCODING_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeCartEmpty       ErrorCode = "CART_EMPTY"
	ErrCodePaymentFailed   ErrorCode = "PAYMENT_FAILED"
	ErrCodePaymentDeclined ErrorCode = "PAYMENT_DECLINED"

	ErrCodeAIGenerationFailed ErrorCode = "AI_GENERATION_FAILED"
	ErrCodeAITimeout          ErrorCode = "AI_TIMEOUT"

	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewClaimValidationFailedError(details string) *StandardError {
	return newError(ErrCodeClaimValidationFailed, "Claim validation failed", details, false)
}

func NewCoverageNotFoundError(memberID string) *StandardError {
	return newError(ErrCodeCoverageNotFound, "No insurance coverage on file",
		fmt.Sprintf("memberId: %s", memberID), false)
}

func NewCoverageCheckFailedError(err error) *StandardError {
	return newError(ErrCodeCoverageCheckFailed, "Database error during coverage check", err.Error(), true)
}

func NewClaimDecisionFailedError(details string) *StandardError {
	return newError(ErrCodeClaimDecisionFailed, "Claim decision could not be made", details, false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewDuplicateRecordError(kind, id string) *StandardError {
	return newError(ErrCodeDuplicateRecord, "Record already exists",
		fmt.Sprintf("%s: %s", kind, id), false)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false)
}

func NewGeocodingFailedError(details string) *StandardError {
	return newError(ErrCodeGeocodingFailed, "Address could not be geocoded", details, false)
}

func NewGeocodingTimeoutError() *StandardError {
	return newError(ErrCodeGeocodingTimeout, "Geocoding service timeout",
		"geocoding call exceeded timeout threshold", true)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

func NewCartEmptyError(userID string) *StandardError {
	return newError(ErrCodeCartEmpty, "Cart is empty", fmt.Sprintf("userId: %s", userID), false)
}

// NewPaymentFailedError is never retryable: payment intents are not idempotent
// unless the caller supplies the same idempotency key.
func NewPaymentFailedError(err error) *StandardError {
	return newError(ErrCodePaymentFailed, "Payment provider error", err.Error(), false)
}

func NewPaymentDeclinedError(details string) *StandardError {
	return newError(ErrCodePaymentDeclined, "Payment request rejected", details, false)
}

func NewAIGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeAIGenerationFailed, "AI generation API error", err.Error(), true)
}

func NewAITimeoutError() *StandardError {
	return newError(ErrCodeAITimeout, "AI generation timeout",
		"generation call exceeded timeout threshold", true)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Access denied", details, false)
}

func NewRateLimitedError() *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", "", true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal error", err.Error(), true)
}

// AsStandardError unwraps err into a StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// GetRetryCount returns how many engine retries a failure with code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCoverageCheckFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeAIGenerationFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeGeocodingTimeout,
		ErrCodeTimeout:
		return 2

	case ErrCodeAITimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CLAIM") || strings.Contains(codeStr, "COVERAGE"):
		return "INSURANCE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "RECORD"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "GEOCODING"):
		return "LOCATION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CART") || strings.Contains(codeStr, "PAYMENT"):
		return "MARKETPLACE"
	case strings.HasPrefix(codeStr, "AI_"):
		return "AI"
	case strings.Contains(codeStr, "AUTH") || codeStr == string(ErrCodeForbidden):
		return "AUTH"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status the API returns for it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeClaimValidationFailed, ErrCodeCartEmpty:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeResourceNotFound, ErrCodeCoverageNotFound, ErrCodeIndexNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicateRecord:
		return http.StatusConflict
	case ErrCodeGeocodingFailed, ErrCodeBusinessRule, ErrCodeClaimDecisionFailed:
		return http.StatusUnprocessableEntity
	case ErrCodePaymentDeclined:
		return http.StatusPaymentRequired
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeQueryTimeout, ErrCodeSearchTimeout, ErrCodeGeocodingTimeout, ErrCodeAITimeout, ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodePaymentFailed, ErrCodeAIGenerationFailed, ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
