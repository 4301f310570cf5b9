package model

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe  = regexp.MustCompile(`^[\d\s\-+()]+$`)
	scriptRe = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	iframeRe = regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`)
)

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsValidURL reports whether s is an absolute URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// IsValidPhone accepts digits, spaces, dashes, plus signs and parentheses
// with at least seven digits.
func IsValidPhone(s string) bool {
	if !phoneRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7
}

// IsValidCoordinates reports whether s is a "lat,lng" pair in range.
func IsValidCoordinates(s string) bool {
	lat, lng, ok := ParseCoordinates(s)
	return ok && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ParseCoordinates splits a "lat,lng" string.
func ParseCoordinates(s string) (lat, lng float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// Sanitize strips script and iframe blocks and surrounding whitespace.
func Sanitize(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = iframeRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

// ValidateProject returns per-field problems with a project form. An empty
// map means the input is valid.
func ValidateProject(name, description string) map[string]string {
	errs := map[string]string{}
	switch {
	case strings.TrimSpace(name) == "":
		errs["name"] = "Project name is required"
	case !lengthBetween(name, 1, 100):
		errs["name"] = "Project name must be between 1 and 100 characters"
	}
	if description != "" && !lengthBetween(description, 0, 500) {
		errs["description"] = "Description must be less than 500 characters"
	}
	return errs
}

// ValidateProfile returns per-field problems with an ICP profile.
func ValidateProfile(p ICPProfile) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(p.ProductName) == "" {
		errs["productName"] = "Product name is required"
	}
	switch {
	case strings.TrimSpace(p.ProductDescription) == "":
		errs["productDescription"] = "Product description is required"
	case !lengthBetween(p.ProductDescription, 10, 500):
		errs["productDescription"] = "Description must be between 10 and 500 characters"
	}
	if strings.TrimSpace(p.TargetAudience) == "" {
		errs["targetAudience"] = "Target audience is required"
	}
	if strings.TrimSpace(p.ValueProposition) == "" {
		errs["valueProposition"] = "Value proposition is required"
	}
	if strings.TrimSpace(p.Location) == "" {
		errs["location"] = "Location is required"
	}
	return errs
}
