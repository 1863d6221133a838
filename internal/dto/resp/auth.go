package resp

import "pulseboard/internal/model"

type LoginResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ID           string `json:"id"`
	Email        string `json:"email"`
}

type LogoutResp struct {
	Message string `json:"message"`
}

// MeResp carries the identity plus the widget catalog tables the dashboard renders from.
type MeResp struct {
	ID      string      `json:"id"`
	Email   string      `json:"email"`
	KPI     []model.Row `json:"kpi"`
	Table   []model.Row `json:"table"`
	Chart   []model.Row `json:"chart"`
	Maps    []model.Row `json:"maps"`
	Widgets []model.Row `json:"widgets"`
}
