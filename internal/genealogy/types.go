// Package genealogy defines core types shared across subsystems.
package genealogy

// Document is a raw page fetched for a single node identifier.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Student is a one-hop neighbor stub extracted from an advisor's page.
// ID is nil when the source row carries no resolvable identifier; such
// stubs never produce a node row or an edge. School and Year start as
// the advisor's table-row values and are replaced when the neighbor's
// own page is reachable.
type Student struct {
	Name   string
	ID     *int
	School *string
	Year   *int16
}

// ScrapeRecord is the transient result of extracting one node page.
// Every field except Name is optional. It is never persisted verbatim;
// the store maps it onto the relational schema.
type ScrapeRecord struct {
	Name         string
	Students     []Student
	Dissertation *string
	School       *string
	Country      *string
	Degree       *string
	Year         *int16
}
