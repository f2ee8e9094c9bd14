package interfaces

import (
	"crypto/subtle"
	"net/http"
)

// BasicAuth 用静态凭证保护预留接口
func BasicAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="product-service"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{ErrorMessage: "Unauthorized", Errors: []fieldErrorBody{}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
