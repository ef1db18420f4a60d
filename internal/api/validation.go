package api

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NSE tickers may carry '&' and '-' (M&M.NS, BAJAJ-AUTO.NS); index symbols start with '^'.
var symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9&.-]{1,24}$`)

// AnalyzeRequest asks for a discovery batch over explicit stocks, a
// predefined set, or an index.
type AnalyzeRequest struct {
	Stocks []string `json:"stocks" validate:"omitempty,max=100,dive,symbol"`
	Set    string   `json:"set,omitempty" validate:"omitempty,max=64"`
	Index  string   `json:"index,omitempty" validate:"omitempty,max=64"`
}

// AnalyzeSingleRequest asks for one stock analyzed in detail.
type AnalyzeSingleRequest struct {
	Symbol string `json:"symbol" validate:"required,symbol"`
}

// Normalize upper-cases and trims the requested symbols.
func (r *AnalyzeRequest) Normalize() {
	for i, s := range r.Stocks {
		r.Stocks[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	r.Set = strings.TrimSpace(r.Set)
	r.Index = strings.ToUpper(strings.TrimSpace(r.Index))
}

// Empty reports whether the request names nothing to analyze.
func (r *AnalyzeRequest) Empty() bool {
	return len(r.Stocks) == 0 && r.Set == "" && r.Index == ""
}

func (r *AnalyzeSingleRequest) Normalize() {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
}

// newValidator returns a validator with the custom "symbol" tag registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return symbolPattern.MatchString(fl.Field().String())
	})
	return v
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "symbol":
		return fmt.Sprintf("invalid symbol %q (letters, digits, '.', '-', '&' only)", fe.Value())
	case "max":
		return fmt.Sprintf("%s exceeds maximum of %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
	}
}
