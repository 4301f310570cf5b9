package enrich

import (
	"strings"

	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/model"
)

// MaxContentChars is how much retrieved content goes into the prompt.
const MaxContentChars = 15000

const systemPrompt = "You are an expert lead enrichment agent. You extract contact details for one business from its website content and answer with a single JSON object."

const icebreakerTemplate = `Hi—I'm not sure if this is {name} or perhaps the front office, but I'm a big fan of {paraphrasedApproach} and wanted to run something by {him/her}.`

// BuildPrompt renders the extraction instruction for one candidate.
func BuildPrompt(c model.DiscoveryCandidate, content string, o *Outreach) string {
	var b strings.Builder

	b.WriteString("BUSINESS DATA (from Google Maps):\n")
	b.WriteString("Name: " + c.CompanyName + "\n")
	b.WriteString("Website: " + c.Website + "\n")
	b.WriteString("Location: " + c.Address + "\n")
	b.WriteString("Existing Description (generic): " + c.Description + "\n\n")

	b.WriteString("WEBSITE CONTENT:\n")
	if content = strings.TrimSpace(content); content != "" {
		b.WriteString(truncateRunes(content, MaxContentChars))
	} else {
		b.WriteString("No website content available.")
	}
	b.WriteString("\n\n")

	if ctx := o.Context(); ctx != "" {
		b.WriteString("CONTEXT FOR ICEBREAKER:\n")
		b.WriteString(ctx)
		b.WriteString("\n\nFrame the icebreaker with the context above. Connect what this business needs, as shown in its website content, to the value proposition.\n\n")
	} else {
		b.WriteString("ICEBREAKER RULE:\nFormat: \"" + icebreakerTemplate + "\"\n\n")
	}

	b.WriteString(`TASK:
1. Extract email addresses (support@, info@ or named people).
2. Extract social profile links (LinkedIn, Facebook, Instagram).
3. Extract the phone number if it differs from the listing.
4. Extract a contact person (Founder, Owner, CEO or a relevant role from About or Team pages) and their title.
5. Rate a quality score from 1 to 100 for how much contact information you found.
6. Rate a confidence score from 0.0 to 1.0 for the accuracy of this data.
7. Write a smart icebreaker.
8. Rewrite enrichedDescription as a specific 1-2 sentence summary of what the business actually does, based on the website content.

Return one JSON object (not an array):
{
  "phone": "string",
  "email": "string",
  "linkedIn": "string",
  "facebook": "string",
  "instagram": "string",
  "contactName": "string (empty if not found)",
  "contactTitle": "string (empty if not found)",
  "qualityScore": number,
  "confidenceOverall": number,
  "socialContext": "string (where the details were found)",
  "icebreaker": "string",
  "enrichedDescription": "string"
}`)
	return b.String()
}

// truncateRunes keeps at most n runes of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

var extractionSchema = llm.Object(map[string]*llm.Schema{
	"phone":               llm.String(""),
	"email":               llm.String(""),
	"linkedIn":            llm.String("LinkedIn URL"),
	"facebook":            llm.String("Facebook URL"),
	"instagram":           llm.String("Instagram URL"),
	"contactName":         llm.String(""),
	"contactTitle":        llm.String(""),
	"qualityScore":        llm.Integer("1-100"),
	"confidenceOverall":   llm.Number("0.0-1.0"),
	"socialContext":       llm.String("where the details were found"),
	"icebreaker":          llm.String("one-line opening message"),
	"enrichedDescription": llm.String("1-2 sentence business summary"),
}, "qualityScore", "confidenceOverall", "icebreaker")
