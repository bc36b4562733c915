package models

// LoginPageData is the login-specific part of the login template data
type LoginPageData struct {
	// Email is repopulated after a failed attempt so users don't have to re-type
	Email string

	// Role is the tab shown as active. Defaults to student
	Role Role

	// Providers lists the OAuth providers that are configured. Buttons for
	// providers missing from this list are not rendered
	Providers []string
}

// RegisterPageData is the registration-specific part of the register template data
type RegisterPageData struct {
	// Old holds the previously submitted values, keyed by form field name.
	// The selected_role entry lets the page re-select the role card on load
	Old map[string]string

	// FieldErrors holds the per-field validation messages from the last submit
	FieldErrors map[string]string

	// OAuthProvider is set when the user arrived from an OAuth callback that
	// matched no account; the email field is then prefilled
	OAuthProvider string
}

// FlashMessage is a server-relayed message rendered into #serverMessage and
// shown by the page's message display
type FlashMessage struct {
	Kind string // "error", "success" or "info"
	Text string
}
