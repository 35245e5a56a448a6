/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"github.com/go-openapi/strfmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/suparena/peoplestore/errors"
	"github.com/suparena/peoplestore/registry"
)

// Field names of a Person document.
const (
	FieldID            = "_id"
	FieldName          = "name"
	FieldAge           = "age"
	FieldFavoriteFoods = "favoriteFoods"
)

const (
	// PersonEntity is the registered entity name of Person.
	PersonEntity = "Person"
	// PersonCollection is the default collection holding Person documents.
	PersonCollection = "people"
)

// Person is a document of the people collection.
//
// The identifier is assigned on insert. In DynamoDB it is carried by the
// "_id" attribute written by the datastore, hence the dynamodbav skip.
type Person struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id" dynamodbav:"-"`
	Name          string             `bson:"name" json:"name" dynamodbav:"name"`
	Age           int                `bson:"age" json:"age" dynamodbav:"age"`
	FavoriteFoods []string           `bson:"favoriteFoods" json:"favoriteFoods" dynamodbav:"favoriteFoods"`
}

func init() {
	registry.RegisterEntity[Person](registry.Entity{
		Name:       PersonEntity,
		Collection: PersonCollection,
		IndexMap: map[string]string{
			"PK":     "PERSON#{_id}",
			"SK":     "PERSON#{_id}",
			"GSI1PK": "NAME#{name}",
			"GSI1SK": "PERSON#{_id}",
		},
	})
}

// NewPerson returns a Person without an identifier.
func NewPerson(name string, age int, favoriteFoods ...string) *Person {
	if favoriteFoods == nil {
		favoriteFoods = []string{}
	}
	return &Person{Name: name, Age: age, FavoriteFoods: favoriteFoods}
}

// DocumentID returns the hex identifier, or "" if none was assigned.
func (p *Person) DocumentID() string {
	if p.ID.IsZero() {
		return ""
	}
	return p.ID.Hex()
}

// AssignID sets the identifier from its hex form.
func (p *Person) AssignID(id string) error {
	if !IsValidID(id) {
		return errors.NewValidationError(FieldID, "must be a 24 character hex ObjectId")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.NewValidationError(FieldID, err.Error())
	}
	p.ID = oid
	return nil
}

// Validate checks that all required fields are present and well-formed.
func (p *Person) Validate() error {
	switch {
	case p.Name == "":
		return errors.NewValidationError(FieldName, "is required")
	case p.Age < 0:
		return errors.NewValidationError(FieldAge, "must not be negative")
	case p.FavoriteFoods == nil:
		return errors.NewValidationError(FieldFavoriteFoods, "is required")
	}
	return nil
}

// JSONSchema returns the $jsonSchema validator enforced by MongoDB on writes.
func (p *Person) JSONSchema() bson.M {
	return bson.M{
		"bsonType": "object",
		"required": bson.A{FieldName, FieldAge, FieldFavoriteFoods},
		"properties": bson.M{
			FieldName: bson.M{"bsonType": "string"},
			FieldAge:  bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			FieldFavoriteFoods: bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},
		},
	}
}

// IsValidID reports whether id is a valid hex ObjectId.
func IsValidID(id string) bool {
	return strfmt.IsBSONObjectID(id)
}
