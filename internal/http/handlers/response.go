package handlers

import "github.com/gin-gonic/gin"

// ErrorResponse is the uniform JSON error envelope.
type ErrorResponse struct {
	// RequestID echoes the correlation ID assigned by the middleware chain.
	RequestID string `json:"request_id"`
	// Code is the stable machine-readable error identifier.
	Code string `json:"code"`
	// Message is a human-readable, localized explanation.
	Message string `json:"message"`
	// Context is the localized toast title shown with the message, when the
	// storefront UI presents one (the "System" title on server errors).
	Context string `json:"context,omitempty"`
	// Redirect is an optional client-side destination hint.
	Redirect string `json:"redirect,omitempty"`
}

// requestID pulls the correlation ID set by the RequestID middleware.
func requestID(c *gin.Context) string {
	if rid := c.Writer.Header().Get("X-Request-ID"); rid != "" {
		return rid
	}
	return c.GetHeader("X-Request-ID")
}

// fail writes the error envelope with the given status and aborts the chain.
func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   message,
	})
}

// failCtx is fail with a localized toast title attached.
func failCtx(c *gin.Context, status int, code, message, msgContext string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   message,
		Context:   msgContext,
	})
}

// failRedirect is fail with a client-side redirect hint attached.
func failRedirect(c *gin.Context, status int, code, message, redirect string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   message,
		Redirect:  redirect,
	})
}

// Fail is the exported variant used by the router for NoRoute/NoMethod.
func Fail(c *gin.Context, status int, code, message string) {
	fail(c, status, code, message)
}
