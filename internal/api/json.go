package api

import (
	"content-wiki/internal/revision"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/mitchellh/mapstructure"
	"net/http"
)

const (
	Success string = "success" //The request ended successfully
	Error   string = "error"   //The request ended with error - check the message field
)

type GenericRequest struct {
	Data map[string]interface{} `json:"data"`
}

func NewGenericResponse(status string, message string, data interface{}) gin.H {
	return gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	}
}

func NewErrorResponse(message string) gin.H {
	return gin.H{
		"status":  Error,
		"message": message,
		"data":    gin.H{},
	}
}

func NewErrorResponsef(format string, a ...interface{}) gin.H {
	return gin.H{
		"status":  Error,
		"message": fmt.Sprintf(format, a...),
		"data":    gin.H{},
	}
}

// DecodeDataTo decodes the data of the request into output, which must be a pointer.
// JSON numbers arrive as float64 and are converted to the integer fields of output.
func (genericRequest *GenericRequest) DecodeDataTo(output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(genericRequest.Data)
}

// IsNull reports whether the data of the request contains key with an explicit null value.
func (genericRequest *GenericRequest) IsNull(key string) bool {
	v, ok := genericRequest.Data[key]
	return ok && v == nil
}

func (genericRequest *GenericRequest) Load(input []byte) error {
	err := json.Unmarshal(input, &genericRequest)
	if err != nil {
		return err
	}
	return nil
}

// ErrorStatus maps an error of the revision engine onto an HTTP status code.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, revision.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, revision.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, revision.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, revision.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, revision.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, revision.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError aborts the request with the status code of err and an error envelope.
func AbortWithError(c *gin.Context, err error, message string) {
	c.AbortWithStatusJSON(ErrorStatus(err), NewErrorResponsef("%s: %v", message, err))
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
