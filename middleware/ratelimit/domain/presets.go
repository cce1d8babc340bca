package domain

import "time"

// Presets usados pelo gateway. WebhookPreset não entra no pipeline principal;
// fica disponível para outros pontos de entrada (ex.: /api/webhooks).
var (
	APIPreset = Config{
		Name:        "api",
		Window:      time.Minute,
		MaxRequests: 100,
	}
	AuthPreset = Config{
		Name:        "auth",
		Window:      15 * time.Minute,
		MaxRequests: 5,
	}
	WebhookPreset = Config{
		Name:        "webhook",
		Window:      time.Minute,
		MaxRequests: 1000,
	}
)
