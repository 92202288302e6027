package folders

import (
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/types"
)

// EscapeQueryString escapes a value for use inside a single-quoted query
// literal. Backslashes are escaped before quotes, so O'Brien becomes O\'Brien.
func EscapeQueryString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// TitleClause matches objects by exact title
func TitleClause(name string) string {
	return fmt.Sprintf("title = '%s'", EscapeQueryString(name))
}

// ParentClause matches direct children of parentID
func ParentClause(parentID string) string {
	return fmt.Sprintf("'%s' in parents", EscapeQueryString(parentID))
}

// MarkerClause matches objects carrying the marker property
func MarkerClause(marker types.MarkerProperty) string {
	return fmt.Sprintf("properties has { key='%s' and value='%s' and visibility='%s' }",
		EscapeQueryString(marker.Key), EscapeQueryString(marker.Value), marker.Visibility)
}

// FolderQuery finds a marked folder called name directly under parentID
func FolderQuery(name, parentID string, marker types.MarkerProperty) string {
	return TitleClause(name) + " and " + MarkerClause(marker) + " and " + ParentClause(parentID)
}

// FileQuery finds any object called name directly under parentID
func FileQuery(name, parentID string) string {
	return TitleClause(name) + " and " + ParentClause(parentID)
}
