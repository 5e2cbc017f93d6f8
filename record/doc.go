// Package record provides the Property Record: the generic, store-agnostic
// container that carries field values between typed objects and storage rows.
//
// A Record maps field names to tagged Values. Value is a sealed interface
// over a closed set of shapes:
//
//	Null | Int | Real | Text | Blob   scalars, one column each
//	Ref                               nested object, stored as the target identifier
//	List                              collection of scalars, stored as a JSON array
//	RefList                           collection of nested objects, stored as a JSON array of identifiers
//
// Exhaustive type switches over Value are safe; no other package can add
// a shape.
//
// Reading a field that is absent from a Record fails with a fault.CodeMissingField
// error, which is distinct from reading a present Null.
package record
