package httpapi

// 响应码：CodeOK 成功，CodeError 失败（HTTP 状态码给出具体类别）
const (
	CodeOK    = 2000
	CodeError = -1
)

// Response 统一响应体，失败时 result 省略
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  T      `json:"result,omitempty"`
}
