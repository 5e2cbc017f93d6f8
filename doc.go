// Package stow persists typed Go objects in an embedded SQLite database
// without SQL and reads them back with a typed filter algebra.
//
// A persistable type implements mapping.Model: it names its entity (the
// table), its identifier field (the primary key) and maps its fields in
// both directions through one Map method. Tables are created from the
// shape of each type's default instance and grow new columns as the type
// grows; columns are never dropped.
//
//	s, err := stow.Open(stow.Config{Path: "pets.db"},
//		stow.WithModels(
//			func() mapping.Model { return &Dog{} },
//			func() mapping.Model { return &Person{} },
//		))
//	...
//	stow.AddOne(s, rex, func(err error) { ... })
//	stow.Get[Dog](s, query.Where(query.Gt("age", 2)), func(dogs []*Dog, err error) { ... }, stow.Resolve())
//
// Every operation is asynchronous. It is queued and returns immediately;
// its completion runs later, exactly once, on the store's worker
// goroutine. Operations on one store run one at a time in submission
// order, so a Get queued after an Add sees the added objects.
package stow
