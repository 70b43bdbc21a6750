// Package csvio reads and writes the team record table. The header decides
// column positions once at load time; columns may appear in any order, and
// optional columns may be absent entirely.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zuercheram/DevopsAutomate/internal/domain"
)

const (
	colID          = "Id"
	colTeamName    = "TeamName"
	colParentTeam  = "ParentTeam"
	colDescription = "Description"
	colAreaPaths   = "AreaPaths"
	colMembers     = "Members"
	colIterations  = "Iterations"
)

const listSeparator = ";"

var allColumns = []string{colID, colTeamName, colParentTeam, colDescription, colAreaPaths, colMembers, colIterations}

type schema struct {
	index map[string]int
}

func newSchema(header []string) (schema, error) {
	s := schema{index: make(map[string]int, len(header))}
	for i, name := range header {
		s.index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colTeamName, colParentTeam} {
		if _, ok := s.index[required]; !ok {
			return schema{}, fmt.Errorf("missing mandatory column %q", required)
		}
	}
	return s, nil
}

func (s schema) field(row []string, column string) string {
	i, ok := s.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (s schema) list(row []string, column string) []string {
	raw := s.field(row, column)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, listSeparator) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Read parses team records from r. Schema violations are fatal for the run.
func Read(r io.Reader) ([]*domain.TeamRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty input: header row required")
	}
	s, err := newSchema(rows[0])
	if err != nil {
		return nil, err
	}
	records := make([]*domain.TeamRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, &domain.TeamRecord{
			Identity:        s.field(row, colID),
			Name:            s.field(row, colTeamName),
			ParentName:      s.field(row, colParentTeam),
			Description:     s.field(row, colDescription),
			CustomAreaSpecs: s.list(row, colAreaPaths),
			MemberEmails:    s.list(row, colMembers),
			IterationSpecs:  s.list(row, colIterations),
		})
	}
	return records, nil
}

// ReadFile parses team records from the file at path.
func ReadFile(path string) ([]*domain.TeamRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Write emits records in the canonical column order, identities included.
func Write(w io.Writer, records []*domain.TeamRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(allColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Identity,
			rec.Name,
			rec.ParentName,
			rec.Description,
			strings.Join(rec.CustomAreaSpecs, listSeparator),
			strings.Join(rec.MemberEmails, listSeparator),
			strings.Join(rec.IterationSpecs, listSeparator),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", rec.Name, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes records to the file at path, replacing its contents.
func WriteFile(path string, records []*domain.TeamRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	if err := Write(f, records); err != nil {
		return err
	}
	return f.Close()
}
