package handler

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"wavyai/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// bindFormAndValidate binds a urlencoded body and runs go-playground/validator tags.
func bindFormAndValidate(c *gin.Context, req any) error {
	if err := c.ShouldBind(req); err != nil {
		return fmt.Errorf("bind form: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+"="+fe.Tag())
			}
			return fmt.Errorf("invalid form: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// writeTwiML answers with a single-message TwiML document.
func writeTwiML(c *gin.Context, text string) {
	body, err := xml.Marshal(dto.TwiMLResponse{Message: text})
	if err != nil {
		_ = c.Error(err)
		body = []byte("<Response></Response>")
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), body...))
}
