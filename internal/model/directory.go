package model

// The directory models are the concrete, watchable record types this server
// exposes. They use integer primary keys (SQLite rowids) because watchlist
// entries reference objects by integer id.

// Person is a directory entry for an individual.
type Person struct {
	ID        int64  `json:"id"        db:"id"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName"  db:"last_name"`
}

// PersonLabel is the stable model label people are registered under.
const PersonLabel = "app.person"

// ModelLabel identifies the model type a Person belongs to.
func (p Person) ModelLabel() string { return PersonLabel }

// ObjectID returns the primary key.
func (p Person) ObjectID() int64 { return p.ID }

// ObjectRepr returns the display string captured into watchlist snapshots.
func (p Person) ObjectRepr() string {
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// Company is a directory entry for an organisation.
type Company struct {
	ID   int64  `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`
}

// CompanyLabel is the stable model label companies are registered under.
const CompanyLabel = "app.company"

// ModelLabel identifies the model type a Company belongs to.
func (c Company) ModelLabel() string { return CompanyLabel }

// ObjectID returns the primary key.
func (c Company) ObjectID() int64 { return c.ID }

// ObjectRepr returns the display string captured into watchlist snapshots.
func (c Company) ObjectRepr() string { return c.Name }
