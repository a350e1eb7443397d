package domain

// Catalog availability values as reported by the pricing oracle.
const (
	AvailabilityAvailable   = "AVAILABLE"
	AvailabilityUnavailable = "UNAVAILABLE"
	AvailabilitySoldOut     = "SOLD_OUT"
)

// MenuItem is the catalog view of a dish at the time it was priced.
type MenuItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Availability string  `json:"availability"`
	Station      string  `json:"station"`
}

func (m MenuItem) Available() bool {
	return m.Availability == AvailabilityAvailable
}

type ModifierGroup struct {
	ID         string `json:"id"`
	MenuItemID string `json:"menuItemId"`
	Name       string `json:"name"`
	IsActive   bool   `json:"isActive"`
}

type ModifierOption struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"groupId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	IsAvailable bool    `json:"isAvailable"`
}

// TableInfo is the display snapshot of a table and its floor.
type TableInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FloorID   string `json:"floorId"`
	FloorName string `json:"floorName"`
}
