package identity

// ResponseMode denotes how the authorization response parameters are returned
// to the redirect URI.
type ResponseMode string

const (
	// QueryResponseMode returns parameters in the redirect URL query string.
	QueryResponseMode ResponseMode = "query"

	// FormPostResponseMode returns parameters in an auto-submitted HTML form
	// POSTed to the redirect URI. Apple requires it when name or email is
	// requested.
	FormPostResponseMode ResponseMode = "form_post"
)

// Prompt values for the authorization request.
const (
	promptNone          = "none"
	promptSelectConsent = "select_account consent"
)

const (
	paramResponseMode = "response_mode"
	paramResponseType = "response_type"
	paramPrompt       = "prompt"
	paramIDToken      = "id_token"
)
