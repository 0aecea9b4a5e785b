package types

// OpenRequest is the body of a bridge open call.
type OpenRequest struct {
	URL string `json:"url"`
}

// OpenResponse reports whether the receiving side recognised the URL.
type OpenResponse struct {
	Handled bool   `json:"handled"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
