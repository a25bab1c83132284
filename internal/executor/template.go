package executor

import (
	"strings"

	"github.com/mselim/campaign-gateway/internal/model"
)

// RenderTemplate substitutes contact fields into the campaign template.
// Supported placeholders: {first_name}, {last_name}, {phone}. Missing
// fields render as empty strings.
func RenderTemplate(template string, c *model.Contact) string {
	r := strings.NewReplacer(
		"{first_name}", c.FirstName,
		"{last_name}", c.LastName,
		"{phone}", c.PhoneNumber,
	)
	return r.Replace(template)
}
