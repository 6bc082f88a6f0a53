package models

// OTPStats describes the OTP state of unauthenticated users
type OTPStats struct {
	Expired              int64 `json:"expiredOTPs"`
	Active               int64 `json:"activeOTPs"`
	WithoutOTP           int64 `json:"unauthenticatedWithoutOTP"`
	TotalUnauthenticated int64 `json:"totalUnauthenticated"`
}

// UserCounts splits the directory by verification state
type UserCounts struct {
	Unauthenticated int64 `json:"unauthenticatedUsers"`
	Authenticated   int64 `json:"authenticatedUsers"`
	Total           int64 `json:"totalUsers"`
}
