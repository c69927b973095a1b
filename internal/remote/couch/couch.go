// Package couch implements the remote adapter over a CouchDB database.
//
// All collections share one database. A record is stored as a document whose
// _id is "<collection>:<remote id>", tagged with doc_type, holding the
// translated snake_case columns.
package couch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
	"github.com/google/uuid"

	"github.com/jhousvawls/daily-coach/internal/remote"
)

// Store is a remote.Adapter over CouchDB.
type Store struct {
	client *kivik.Client
	db     *kivik.DB
}

var _ remote.Adapter = (*Store)(nil)

// Open connects to the CouchDB server at url and opens dbName, creating it
// if it does not exist.
func Open(ctx context.Context, url, dbName string) (*Store, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, dbName); err != nil && kivik.HTTPStatus(err) != http.StatusPreconditionFailed {
			_ = client.Close()
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &Store{client: client, db: client.DB(dbName)}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func docID(c remote.Collection, id string) string {
	return string(c) + ":" + id
}

// toDoc turns a translated row into a CouchDB document body.
func toDoc(c remote.Collection, row remote.Row, rev string) map[string]any {
	doc := make(map[string]any, len(row)+3)
	for k, v := range row {
		doc[k] = v
	}
	doc["_id"] = docID(c, fmt.Sprint(row["id"]))
	doc["doc_type"] = string(c)
	if rev != "" {
		doc["_rev"] = rev
	}
	return doc
}

// fromDoc strips CouchDB metadata, leaving the translated row.
func fromDoc(doc map[string]any) (remote.Row, string) {
	rev, _ := doc["_rev"].(string)
	row := make(remote.Row, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "_") || k == "doc_type" {
			continue
		}
		row[k] = v
	}
	return row, rev
}

// Insert implements remote.Adapter as an upsert on id.
func (s *Store) Insert(ctx context.Context, rec remote.Record) (remote.Record, error) {
	c := rec.Collection()
	if rec.RecordID() == "" {
		rec = remote.Stamp(rec, uuid.NewString(), rec.Owner())
	}
	row, err := remote.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}

	id := docID(c, rec.RecordID())
	rev, err := s.db.GetRev(ctx, id)
	if err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return nil, fmt.Errorf("failed to read %s %s: %w", c, rec.RecordID(), err)
	}
	if _, err := s.db.Put(ctx, id, toDoc(c, row, rev)); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", c, err)
	}
	return remote.DecodeRow(c, row)
}

// Update implements remote.Adapter.
func (s *Store) Update(ctx context.Context, c remote.Collection, id string, fields remote.Fields) (remote.Record, error) {
	patch, err := remote.EncodeFields(c, fields)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := s.db.Get(ctx, docID(c, id)).ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("update %s %s: %w", c, id, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s %s for update: %w", c, id, err)
	}
	row, rev := fromDoc(doc)
	for k, v := range patch {
		row[k] = v
	}
	if _, err := s.db.Put(ctx, docID(c, id), toDoc(c, row, rev)); err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", c, id, err)
	}
	return remote.DecodeRow(c, row)
}

// Delete implements remote.Adapter. Returns nil if the document doesn't exist.
func (s *Store) Delete(ctx context.Context, c remote.Collection, id string) error {
	rev, err := s.db.GetRev(ctx, docID(c, id))
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to get %s %s for delete: %w", c, id, err)
	}
	if _, err := s.db.Delete(ctx, docID(c, id), rev); err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return fmt.Errorf("failed to delete %s %s: %w", c, id, err)
	}
	return nil
}

// List implements remote.Adapter with a Mango query on doc_type.
func (s *Store) List(ctx context.Context, c remote.Collection, f remote.Filter) ([]remote.Record, error) {
	if _, err := remote.Columns(c); err != nil {
		return nil, err
	}
	query := map[string]interface{}{
		"selector": selector(c, f),
	}

	rows := s.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	out := []remote.Record{}
	for rows.Next() {
		var doc map[string]any
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", c, err)
		}
		row, _ := fromDoc(doc)
		rec, err := remote.DecodeRow(c, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", c, err)
	}
	return out, nil
}

func selector(c remote.Collection, f remote.Filter) map[string]interface{} {
	sel := map[string]interface{}{"doc_type": string(c)}
	if f.UserID != "" {
		sel["user_id"] = f.UserID
	}
	return sel
}
