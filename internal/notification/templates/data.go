package templates

// VerifyEmailData holds variables for the auth.verify_email scenario using a 6-digit code.
type VerifyEmailData struct {
	Name           string
	Code           string
	ExpiresMinutes int
	SupportEmail   string
}

// VerifyEmail is the typed handle for the auth.verify_email template.
var VerifyEmail = Expect[VerifyEmailData]("auth.verify_email")

// PasswordResetData holds variables for sending a password reset link.
type PasswordResetData struct {
	Name           string
	ResetURL       string
	ExpiresMinutes int
	SupportEmail   string
}

// PasswordReset is the typed handle for the auth.password_reset template.
var PasswordReset = Expect[PasswordResetData]("auth.password_reset")

// PasswordChangedData holds variables for the confirmation sent after a successful reset.
type PasswordChangedData struct {
	Name         string
	SupportEmail string
}

// PasswordChanged is the typed handle for the auth.password_changed template.
var PasswordChanged = Expect[PasswordChangedData]("auth.password_changed")
