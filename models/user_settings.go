package models

const DefaultTimezone = "UTC"

type UserSettings struct {
	UserID   int    `json:"user_id" db:"user_id"`
	Currency string `json:"currency" db:"currency"` // base currency
	Timezone string `json:"timezone" db:"timezone"`
}

// DefaultUserSettings is used for owners that never saved settings.
func DefaultUserSettings(userID int) *UserSettings {
	return &UserSettings{
		UserID:   userID,
		Currency: DefaultBaseCurrency,
		Timezone: DefaultTimezone,
	}
}
