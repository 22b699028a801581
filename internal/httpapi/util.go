package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK[T any](w http.ResponseWriter, result T) {
	writeJSON(w, http.StatusOK, Response[T]{Code: CodeOK, Message: "ok", Result: result})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response[any]{Code: CodeError, Message: message})
}

// queryInt 缺省时返回 def，非整数返回错误
func queryInt(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, s)
	}
	return i, nil
}

// decodeBody 空请求体视为零值请求
func decodeBody(r *http.Request, maxBytes int64, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBytes)).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
