// Package models declares the documents stored by peoplestore and registers
// their persistence layout with the registry package.
package models
