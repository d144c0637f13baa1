// internal/workers/marketplace/create-payment-intent/models.go
package createpaymentintent

type Input struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
}

type Output struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"paymentStatus"`
	AmountCents     int64  `json:"amountCents"`
	Currency        string `json:"currency"`
}

type paymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}
