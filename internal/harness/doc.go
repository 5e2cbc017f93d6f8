// Package harness runs YAML scenarios against a live engine and records
// what each step produced.
//
// # Scenario Format
//
//	name: adopt_rex
//	description: "Adding a dog stores its owner once"
//	steps:
//	  - op: add
//	    entity: Dog
//	    objects:
//	      - {name: Rex, age: 3, owner: {id: 7, name: Ann}}
//	  - op: get
//	    entity: Dog
//	    where:
//	      - {field: age, op: ">", value: 2}
//	    sort:
//	      - {field: name}
//	    resolve: true
//	    expect: {count: 1}
//	  - op: delete
//	    entity: Dog
//	    expect: {count: 1}
//	  - op: index
//	    entity: Dog
//	    fields: [age]
//
// Objects are written field by field under their mapped keys. A nested
// field takes either a map, which is the nested object, or a scalar,
// which references an object by identifier only.
//
// Conditions use the comparison operators =, !=, <, <=, >, >= plus "in"
// (with values), "null" and "not_null". Conditions in one step are
// combined with AND.
//
// Each scenario runs on a fresh database in a temporary directory, so
// traces are reproducible and can be compared with golden files.
package harness
