package resp

type InvalidateResp struct {
	DeletedKey string `json:"deleted_key"`
	Existed    bool   `json:"existed"`
}

type EventResp struct {
	Table       string `json:"table"`
	Invalidated bool   `json:"invalidated"`
}
