package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"resumatch/pkg/models"
)

// CreateTag creates a tag, preserving the given casing. Names are unique
// case-insensitively; creating "Golang" when "golang" exists returns the
// existing tag.
func (s *Store) CreateTag(name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name must not be empty")
	}

	if existing, err := s.GetTagByName(name); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	res, err := s.db.Exec(`INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Tag{ID: id, Name: name}, nil
}

// GetTagByName looks a tag up case-insensitively.
func (s *Store) GetTagByName(name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.QueryRow(`SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE`, name).
		Scan(&tag.ID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags() ([]models.Tag, error) {
	rows, err := s.db.Query(`SELECT id, name FROM tags ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// RenameTag renames a tag and rewrites every job and resume carrying the old
// name in one transaction.
func (s *Store) RenameTag(id int64, newName string) (*models.Tag, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("tag name must not be empty")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var oldName string
	err = tx.QueryRow(`SELECT name FROM tags WHERE id = ?`, id).Scan(&oldName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var clashID int64
	err = tx.QueryRow(`SELECT id FROM tags WHERE name = ? COLLATE NOCASE AND id != ?`, newName, id).Scan(&clashID)
	if err == nil {
		return nil, fmt.Errorf("tag %q already exists", newName)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := tx.Exec(`UPDATE tags SET name = ? WHERE id = ?`, newName, id); err != nil {
		return nil, err
	}

	for _, table := range []string{"jobs", "resumes"} {
		if err := rewriteDocumentTags(tx, table, oldName, newName); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.Tag{ID: id, Name: newName}, nil
}

// DeleteTag deletes a tag and strips it from every job and resume.
func (s *Store) DeleteTag(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRow(`SELECT name FROM tags WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
		return err
	}

	for _, table := range []string{"jobs", "resumes"} {
		if err := rewriteDocumentTags(tx, table, name, ""); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// EnsureTags creates any missing tags from the list, case-insensitively.
func (s *Store) EnsureTags(names []string) error {
	for _, name := range names {
		if _, err := s.CreateTag(name); err != nil {
			return err
		}
	}
	return nil
}

// rewriteDocumentTags replaces oldName with newName in the comma-joined tags
// column of the given table; an empty newName removes the tag.
func rewriteDocumentTags(tx *sql.Tx, table, oldName, newName string) error {
	rows, err := tx.Query(fmt.Sprintf(`SELECT id, tags FROM %s WHERE tags != ''`, table))
	if err != nil {
		return err
	}

	type rewrite struct {
		id   int64
		tags string
	}
	var pending []rewrite
	for rows.Next() {
		var id int64
		var tags string
		if err := rows.Scan(&id, &tags); err != nil {
			rows.Close()
			return err
		}
		updated, changed := replaceTag(splitTags(tags), oldName, newName)
		if changed {
			pending = append(pending, rewrite{id: id, tags: joinTags(updated)})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, p := range pending {
		if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET tags = ? WHERE id = ?`, table), p.tags, p.id); err != nil {
			return err
		}
	}
	return nil
}

func replaceTag(tags []string, oldName, newName string) ([]string, bool) {
	out := make([]string, 0, len(tags))
	changed := false
	for _, t := range tags {
		if strings.EqualFold(t, oldName) {
			changed = true
			if newName != "" {
				out = append(out, newName)
			}
			continue
		}
		out = append(out, t)
	}
	return out, changed
}
