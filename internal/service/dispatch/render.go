package dispatch

import (
	"strings"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/osteele/liquid"
)

// renderer personalises subject and body per recipient. Templates see
// "recipient", "campaign_id" and "contact" (company, email, fax).
type renderer struct {
	engine *liquid.Engine
}

func newRenderer() *renderer {
	return &renderer{engine: liquid.NewEngine()}
}

func hasTags(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

func (r *renderer) render(tpl string, item *domain.QueueItem, contact *domain.Contact) (string, error) {
	if !hasTags(tpl) {
		return tpl, nil
	}
	bindings := map[string]any{
		"recipient":   item.Recipient,
		"campaign_id": item.CampaignID.String(),
		"contact":     contactBindings(contact),
	}
	out, err := r.engine.ParseAndRenderString(tpl, bindings)
	if err != nil {
		return "", err
	}
	return out, nil
}

func contactBindings(c *domain.Contact) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	m := map[string]any{"company": c.Company}
	if c.Email != nil {
		m["email"] = *c.Email
	}
	if c.Fax != nil {
		m["fax"] = *c.Fax
	}
	return m
}
