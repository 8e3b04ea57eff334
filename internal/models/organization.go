package models

// Organization represents a tenant organization
type Organization struct {
	BaseModel

	Name    string `json:"name" db:"name"`
	NameEn  string `json:"nameEn,omitempty" db:"name_en"`
	Address string `json:"address,omitempty" db:"address"`
	City    string `json:"city,omitempty" db:"city"`
	Phone   string `json:"phone,omitempty" db:"phone"`
	Email   string `json:"email,omitempty" db:"email"`

	// Subscription plan referenced by name. Direct limits apply only when
	// no active license or plan quota resolves first; 0 means unset.
	SubscriptionPlan string `json:"subscriptionPlan" db:"subscription_plan"`
	MaxCameras       int    `json:"maxCameras" db:"max_cameras"`
	MaxEdgeServers   int    `json:"maxEdgeServers" db:"max_edge_servers"`

	IsActive bool `json:"isActive" db:"is_active"`
}

// SubscriptionPlan represents a reusable subscription tier
type SubscriptionPlan struct {
	BaseModel

	Name   string `json:"name" db:"name"`
	NameAr string `json:"nameAr,omitempty" db:"name_ar"`

	// 0 means unlimited at the plan level
	MaxCameras     int `json:"maxCameras" db:"max_cameras"`
	MaxEdgeServers int `json:"maxEdgeServers" db:"max_edge_servers"`

	AvailableModules StringList `json:"availableModules,omitempty" db:"available_modules"`
	SmsQuota         int        `json:"smsQuota" db:"sms_quota"`

	PriceMonthly float64 `json:"priceMonthly" db:"price_monthly"`
	PriceYearly  float64 `json:"priceYearly" db:"price_yearly"`

	IsActive bool `json:"isActive" db:"is_active"`
}
