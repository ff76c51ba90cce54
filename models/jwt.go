package models

// DownloadClaims are the claims carried by a signed download link.
type DownloadClaims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub"` // output FileID
	JobID     string `json:"job,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
