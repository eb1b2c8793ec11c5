package model

type ErrorResponse struct {
	ErrCode int    `json:"errCode"`
	Message string `json:"message"`
}

type StatusResponse struct {
	ErrCode int    `json:"errCode"`
	Message string `json:"message"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
