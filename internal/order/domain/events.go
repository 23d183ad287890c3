package domain

type OrderConfirmed struct {
	OrderID    string
	UserID     string
	TotalCents int64
	Lines      []Line
}

type OrderFailed struct {
	OrderID string
	UserID  string
	Reason  string
}

type OrderCancelled struct {
	OrderID string
	UserID  string
	Reason  string
}
