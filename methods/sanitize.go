package methods

// formulaPrefixes are leading characters a spreadsheet evaluates as a formula.
var formulaPrefixes = [...]byte{'=', '+', '-', '@'}

// SanitizeCSVField neutralises spreadsheet formula injection by prefixing an apostrophe.
func SanitizeCSVField(s string) string {
	if s == "" {
		return s
	}
	for _, p := range formulaPrefixes {
		if s[0] == p {
			return "'" + s
		}
	}
	return s
}
