package dto

import "github.com/shopspring/decimal"

// PromoValidateRequest checks a code against an order amount.
type PromoValidateRequest struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

type PromoValidateResponse struct {
	Code           string          `json:"code"`
	Type           string          `json:"discount_type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}
