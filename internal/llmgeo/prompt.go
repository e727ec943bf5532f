package llmgeo

import (
	"fmt"
	"strings"
)

// OutputHeader is the first line of the LLM coordinate file.
const OutputHeader = "Site Name,City,State,Latitude,Longitude"

// MakePrompt asks for a single CSV row describing siteName.
func MakePrompt(siteName string) string {
	return fmt.Sprintf(`
You are a helpful AI assistant. Given the name of a heritage site, return a single CSV row with the format:
Site Name, City, State, Latitude, Longitude

Example:
Taj Mahal, Agra, Uttar Pradesh, 27.1751, 78.0421

Now do the same for: %s
Just return the row, no explanation.
`, siteName)
}

// ParseRow extracts the row from a model reply: the first line outside
// code fences with at least four commas. Lines of prose around it are
// ignored and columns are not validated further.
func ParseRow(reply string) (string, bool) {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			continue
		}
		if strings.Count(line, ",") >= 4 {
			return line, true
		}
	}
	return "", false
}
