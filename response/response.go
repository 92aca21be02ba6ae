package response

import (
	"net/http"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope every handler writes.
type Body struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: http.StatusOK, Message: "success", Data: data})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: http.StatusOK, Message: message, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Code: http.StatusCreated, Message: "created", Data: data})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Body{Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError never echoes the underlying failure.
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, apierr.GenericMessage)
}

// FromError writes err with the status and caller-facing message of its apierr kind.
func FromError(c *gin.Context, err error) {
	status := apierr.StatusOf(err)
	body := Body{Code: status, Message: apierr.Message(err)}
	if e, ok := apierr.As(err); ok && e.Field != "" {
		body.Data = gin.H{"field": e.Field}
	}
	c.JSON(status, body)
}
