package models

import "time"

// Event is a ticketed cultural event
type Event struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Venue       string    `json:"venue" db:"venue"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	TicketPrice float64   `json:"ticket_price" db:"ticket_price"`
	Capacity    int       `json:"capacity" db:"capacity"`
	TicketsSold int       `json:"tickets_sold" db:"tickets_sold"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SeatsLeft returns how many tickets can still be sold
func (e *Event) SeatsLeft() int {
	if left := e.Capacity - e.TicketsSold; left > 0 {
		return left
	}
	return 0
}

// CreateEventRequest is the admin payload for publishing an event
type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Venue       string    `json:"venue" binding:"required"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	TicketPrice float64   `json:"ticket_price" binding:"required,gt=0"`
	Capacity    int       `json:"capacity" binding:"required,gt=0"`
}

// PurchaseTicketRequest is the traveler payload for buying tickets
type PurchaseTicketRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0,lte=20"`
}
