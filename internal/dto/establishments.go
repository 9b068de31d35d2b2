package dto

// UpsertEstablishmentRequest captures administrator-submitted catalogue data.
type UpsertEstablishmentRequest struct {
	Name             string   `json:"name"`
	Description      *string  `json:"description,omitempty"`
	Address          string   `json:"address"`
	City             *string  `json:"city,omitempty"`
	Phone            *string  `json:"phone,omitempty"`
	Website          *string  `json:"website,omitempty"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Categories       []string `json:"categories"`
	Cuisines         []string `json:"cuisines,omitempty"`
	PriceTier        *string  `json:"price_tier,omitempty"`
	Features         []string `json:"features,omitempty"`
	HoursWindows     []string `json:"hours_windows,omitempty"`
	SubscriptionTier string   `json:"subscription_tier,omitempty"`
}

// StatusChangeRequest moves an establishment through the moderation
// lifecycle.
type StatusChangeRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}
