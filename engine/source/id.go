package source

import "strings"

// SafeID makes a document identifier usable as a single path element.
// Old-style identifiers such as "hep-th/9901001" contain a slash.
func SafeID(documentID string) string {
	return strings.ReplaceAll(documentID, "/", "_")
}
