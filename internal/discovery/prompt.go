package discovery

import (
	"fmt"

	"github.com/sells-group/prospect-cli/internal/llm"
)

const systemPrompt = "You are a business research assistant. You only report businesses you have verified exist using map and search grounding."

// BuildPrompt renders the discovery instruction for req.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(`Find %d real businesses matching %q in %s, %s.

Verify every business exists using Google Maps.
Prioritize businesses that list a website; each one will be researched from its site.

Return a strict JSON array of objects with this structure:
{
  "companyName": "string",
  "website": "string (URL or empty)",
  "phone": "string",
  "address": "string",
  "city": "string",
  "country": "string",
  "description": "string (brief)",
  "googleMapsLink": "string (URL)",
  "coordinates": "string (lat,lng)",
  "rating": number,
  "reviewCount": number,
  "businessHours": "string",
  "category": "string"
}

Output ONLY the JSON array, with no markdown fences or commentary.`,
		req.NumberOfLeads, req.SearchQuery, req.City, req.Country)
}

var candidateSchema = llm.Object(map[string]*llm.Schema{
	"companyName":    llm.String("business name"),
	"website":        llm.String("URL or empty"),
	"phone":          llm.String(""),
	"address":        llm.String(""),
	"city":           llm.String(""),
	"country":        llm.String(""),
	"description":    llm.String("brief description"),
	"googleMapsLink": llm.String("URL"),
	"coordinates":    llm.String("lat,lng"),
	"rating":         llm.Number(""),
	"reviewCount":    llm.Integer(""),
	"businessHours":  llm.String(""),
	"category":       llm.String(""),
}, "companyName", "address")
