package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware injects a localizer into every request context. The language
// comes from the "lang" query parameter, then Accept-Language, then def.
func Middleware(def string) func(http.Handler) http.Handler {
	matcher := language.NewMatcher(Supported())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := def
			if q := r.URL.Query().Get("lang"); q != "" {
				lang = q
			} else if accept := r.Header.Get("Accept-Language"); accept != "" {
				if prefs, _, err := language.ParseAcceptLanguage(accept); err == nil && len(prefs) > 0 {
					tag, _, _ := matcher.Match(prefs...)
					base, _ := tag.Base()
					lang = base.String()
				}
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang, def))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
