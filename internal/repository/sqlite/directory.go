package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/repository"
)

// compile-time check that *DB implements repository.DirectoryRepository
var _ repository.DirectoryRepository = (*DB)(nil)

// The directory tables use SQLite's rowid-backed integer keys, so inserts
// read the assigned id back via LastInsertId.

// CreatePerson inserts a person and fills in the assigned id.
func (db *DB) CreatePerson(ctx context.Context, p *model.Person) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO people (first_name, last_name) VALUES (?, ?)`,
		p.FirstName, p.LastName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating person: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading person id: %w", err)
	}
	return nil
}

// ListPeople returns all people ordered by name, the way the directory
// listing displays them.
func (db *DB) ListPeople(ctx context.Context) ([]model.Person, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, first_name, last_name FROM people
		 ORDER BY last_name, first_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing people: %w", err)
	}
	defer rows.Close()

	people := make([]model.Person, 0)
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating people: %w", err)
	}

	return people, nil
}

// DeletePerson removes a person. Deleting an absent id removes zero rows
// and is not an error.
func (db *DB) DeletePerson(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting person %d: %w", id, err)
	}
	return nil
}

// CreateCompany inserts a company and fills in the assigned id.
func (db *DB) CreateCompany(ctx context.Context, c *model.Company) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO companies (name) VALUES (?)`,
		c.Name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating company: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading company id: %w", err)
	}
	return nil
}

// ListCompanies returns all companies ordered by name.
func (db *DB) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name FROM companies ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing companies: %w", err)
	}
	defer rows.Close()

	companies := make([]model.Company, 0)
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating companies: %w", err)
	}

	return companies, nil
}

// DeleteCompany removes a company.
func (db *DB) DeleteCompany(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting company %d: %w", id, err)
	}
	return nil
}
