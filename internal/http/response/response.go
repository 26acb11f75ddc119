package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps an *apierr.Error (or anything else, as a 500) to the
// error envelope.
func RespondErr(c *gin.Context, err error) {
	status, code := apierr.From(err)
	if status >= http.StatusInternalServerError {
		c.Error(err) //nolint:errcheck
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
