package procurement

import "time"

// Item is one procurement record.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Supplier  string    `json:"supplier"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListFilter narrows the paginated procurement listing. Zero values mean
// the dimension is not filtered.
type ListFilter struct {
	Type         string
	Name         string
	CreatedFrom  time.Time
	CreatedUntil time.Time
	Page         int
	PerPage      int
}
