// Package messages holds the user facing texts shown for session and sign-in
// failures. Korean is the default language.
package messages

import "fmt"

type Key string

const (
	SessionExpired   Key = "session_expired"
	RequestFailed    Key = "request_failed"
	NetworkError     Key = "network_error"
	TokenParseFailed Key = "token_parse_failed"
	SignupRequired   Key = "signup_required"
	ConfigMissing    Key = "config_missing"
	SDKLoadFailed    Key = "sdk_load_failed"
	AuthFailed       Key = "auth_failed"
	AuthTimeout      Key = "auth_timeout"
	AuthCancelled    Key = "auth_cancelled"
	Unsupported      Key = "unsupported_provider"
)

const DefaultLanguage = "ko"

var catalogs = map[string]map[Key]string{
	"ko": {
		SessionExpired:   "인증이 만료되었습니다. 다시 로그인해주세요.",
		RequestFailed:    "요청 처리 중 오류가 발생했습니다.",
		NetworkError:     "서버에 연결할 수 없습니다.",
		TokenParseFailed: "토큰 파싱 실패",
		SignupRequired:   "가입되지 않은 사용자입니다. 회원가입이 필요합니다.",
		ConfigMissing:    "%s Client ID가 설정되지 않았습니다. .env 파일을 확인해주세요.",
		SDKLoadFailed:    "%s 로그인 모듈을 불러올 수 없습니다.",
		AuthFailed:       "%s 로그인에 실패했습니다.",
		AuthTimeout:      "%s 로그인 시간이 초과되었습니다. 다시 시도해주세요.",
		AuthCancelled:    "%s 로그인이 취소되었습니다.",
		Unsupported:      "지원하지 않는 로그인 방식입니다.",
	},
	"en": {
		SessionExpired:   "Your session has expired. Please sign in again.",
		RequestFailed:    "An error occurred while processing the request.",
		NetworkError:     "Could not reach the server.",
		TokenParseFailed: "Failed to parse the access token.",
		SignupRequired:   "No account is registered for this identity. Please sign up.",
		ConfigMissing:    "%s client ID is not configured. Check your .env file.",
		SDKLoadFailed:    "Could not load the %s sign-in module.",
		AuthFailed:       "%s sign-in failed.",
		AuthTimeout:      "%s sign-in timed out. Please try again.",
		AuthCancelled:    "%s sign-in was cancelled.",
		Unsupported:      "Unsupported sign-in method.",
	},
}

// Catalog resolves message keys for one language.
type Catalog struct {
	lang string
}

// For returns the catalog for lang, falling back to Korean for unknown
// languages.
func For(lang string) Catalog {
	if _, ok := catalogs[lang]; !ok {
		lang = DefaultLanguage
	}
	return Catalog{lang: lang}
}

func (c Catalog) Language() string {
	if c.lang == "" {
		return DefaultLanguage
	}
	return c.lang
}

// Get formats the message for key with args.
func (c Catalog) Get(key Key, args ...any) string {
	msg, ok := catalogs[c.Language()][key]
	if !ok {
		msg = catalogs[DefaultLanguage][key]
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
