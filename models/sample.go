/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

// SamplePerson returns the single person created by the seed data.
func SamplePerson() *Person {
	return NewPerson("Jane Fonda", 84, "eggs", "fish", "fresh fruit")
}

// SamplePeople returns the people created in bulk by the seed data.
func SamplePeople() []*Person {
	return []*Person{
		NewPerson("Frankie", 74, "Del Taco"),
		NewPerson("Sol", 76, "roast chicken"),
		NewPerson("Robert", 78, "wine"),
	}
}
