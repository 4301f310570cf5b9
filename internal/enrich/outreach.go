package enrich

import (
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Outreach is the campaign context used to tailor icebreakers.
type Outreach struct {
	ProductName      string `json:"productName" yaml:"product_name"`
	ValueProposition string `json:"valueProposition" yaml:"value_proposition"`
	PersonaName      string `json:"personaName" yaml:"persona_name"`
	OutreachAngle    string `json:"outreachAngle" yaml:"outreach_angle"`
}

// OutreachFromStrategy builds the outreach context for a saved strategy.
func OutreachFromStrategy(s model.SavedStrategy) *Outreach {
	return &Outreach{
		ProductName:      s.Profile.ProductName,
		ValueProposition: s.Profile.ValueProposition,
		PersonaName:      s.PersonaName,
		OutreachAngle:    s.OutreachAngle,
	}
}

// IsEmpty reports whether o carries no usable context.
func (o *Outreach) IsEmpty() bool {
	return o == nil ||
		strings.TrimSpace(o.ProductName+o.ValueProposition+o.PersonaName+o.OutreachAngle) == ""
}

// Context renders o as the labeled block placed in the extraction prompt.
// Empty fields are omitted.
func (o *Outreach) Context() string {
	if o.IsEmpty() {
		return ""
	}
	var lines []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Product", o.ProductName)
	add("Value Prop", o.ValueProposition)
	add("Target Persona", o.PersonaName)
	add("Outreach Angle", o.OutreachAngle)
	return strings.Join(lines, "\n")
}
