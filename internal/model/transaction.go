package model

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"

	DefaultCategory = "Uncategorized"
)

type Transaction struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user"`
	Category        string  `json:"category"`
	Description     *string `json:"description"`
	Amount          float64 `json:"amount"`
	TransactionType string  `json:"transaction_type"`
	Date            string  `json:"date"`
}
