package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response. Code 0 means success.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Code: 0, Message: "created", Data: data})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, Envelope{Code: code, Message: msg, Data: nil})
}

// Abort is Fail for middleware: it stops the handler chain.
func Abort(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{Code: code, Message: msg, Data: nil})
}
