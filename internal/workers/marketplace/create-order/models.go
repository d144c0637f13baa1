// internal/workers/marketplace/create-order/models.go
package createorder

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"orderStatus"`
	TotalCents int64  `json:"totalCents"`
	Currency   string `json:"currency"`
	ItemCount  int    `json:"itemCount"`
}
