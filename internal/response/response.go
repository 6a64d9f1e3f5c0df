package response

import (
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Stack   string       `json:"stack,omitempty"`
}

type Meta struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewMeta(page, limit, total int64) *Meta {
	pages := int64(0)
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Meta{Page: page, Limit: limit, Total: total, Pages: pages}
}

func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func Paginated(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Meta: meta})
}

// DebugKey marks a request whose error responses may carry a stack trace.
const DebugKey = "response.debug"

// Fail writes err as an error envelope and aborts the chain. Errors that are
// not an *AppError are logged under area and reported as a bare 500.
func Fail(c *gin.Context, area string, err error) {
	appErr := From(err)
	if !appErr.Operational {
		log.Printf("[%s] [ERROR] %v", area, err)
	} else if appErr.Status >= http.StatusInternalServerError {
		log.Printf("[%s] [ERROR] %s", area, appErr.Message)
	}
	body := Envelope{
		Success: false,
		Message: appErr.Message,
		Errors:  appErr.Errors,
	}
	if !appErr.Operational && c.GetBool(DebugKey) {
		body.Stack = err.Error() + "\n" + string(debug.Stack())
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

// From converts any error into an *AppError. Duplicate key errors become 409.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if mongo.IsDuplicateKeyError(err) {
		return Conflict("resource already exists")
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NotFound("resource not found")
	}
	return &AppError{Status: http.StatusInternalServerError, Message: "internal server error"}
}
