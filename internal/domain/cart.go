package domain

import "time"

type CartModifier struct {
	GroupID  string `json:"groupId"`
	OptionID string `json:"optionId"`
}

// CartItem is display-only. Price is whatever the client showed and is never
// used to bill.
type CartItem struct {
	LineID       string         `json:"lineId"`
	MenuItemID   string         `json:"menuItemId"`
	Name         string         `json:"name,omitempty"`
	Quantity     int            `json:"quantity"`
	Price        float64        `json:"price"`
	Modifiers    []CartModifier `json:"modifiers,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	CourseNumber int            `json:"courseNumber,omitempty"`
}

type Cart struct {
	TenantID  string     `json:"tenantId"`
	TableID   string     `json:"tableId"`
	Items     []CartItem `json:"items"`
	Notes     string     `json:"notes,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// DisplayTotal is the client-side estimate shown before checkout.
func (c *Cart) DisplayTotal() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	return RoundMoney(total)
}
