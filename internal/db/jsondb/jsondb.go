// Package jsondb is a file-backed storage backend. It serves requests
// from the in-memory backend and snapshots the maps to a JSON file on
// Close, restoring them on startup.
package jsondb

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// JSONDB wraps MemoryStorage with JSON file persistence.
type JSONDB struct {
	*memorystorage.MemoryStorage
	fileName string
}

type fileLayout struct {
	Users   map[string]*user.User   `json:"users"`
	Aliases map[string]*alias.Alias `json:"aliases"`
}

// New loads the database file when it exists, creating an empty one
// otherwise, and returns a ready JSONDB.
func New(fileName string) (*JSONDB, error) {
	memory, err := memorystorage.New()
	if err != nil {
		return nil, err
	}

	db := &JSONDB{
		MemoryStorage: memory,
		fileName:      fileName,
	}

	layout := fileLayout{
		Users:   map[string]*user.User{},
		Aliases: map[string]*alias.Alias{},
	}
	if err := parseJSONFile(fileName, &layout); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := db.save(); err != nil {
			return nil, err
		}
	}
	db.Restore(layout.Users, layout.Aliases)

	return db, nil
}

// Close snapshots the maps to the database file.
func (db *JSONDB) Close() error {
	return db.save()
}

func (db *JSONDB) save() error {
	users, aliases := db.Snapshot()
	layout := fileLayout{
		Users:   users,
		Aliases: aliases,
	}

	jsonData, err := json.MarshalIndent(layout, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(db.fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, layout *fileLayout) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(layout)
}
