package middleware

import "github.com/gin-gonic/gin"

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorResponse is the standard error envelope, {"error":{"message","code"}}.
// The api package uses the same type so handlers and middleware agree on shape.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Message: message, Code: code}})
}
