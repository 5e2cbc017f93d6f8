// Package testutil holds the models and helpers shared by stow's tests.
package testutil

import (
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
)

// Mood is a string-backed enumeration.
type Mood string

const (
	MoodCalm    Mood = "calm"
	MoodPlayful Mood = "playful"
)

// Person is referenced by Dog.Owner.
type Person struct {
	ID   int64
	Name string
}

func (*Person) Entity() string     { return "Person" }
func (*Person) Identifier() string { return "id" }
func (p *Person) Map(m *mapping.Mapper) {
	m.Int64("id", &p.ID)
	m.String("name", &p.Name)
}

// Toy is held in Dog.Toys.
type Toy struct {
	SKU   string
	Label string
}

func (*Toy) Entity() string     { return "Toy" }
func (*Toy) Identifier() string { return "sku" }
func (t *Toy) Map(m *mapping.Mapper) {
	m.String("sku", &t.SKU)
	m.String("label", &t.Label)
}

// Dog exercises scalars, collections, enumerations and nested objects.
type Dog struct {
	Name  string
	Age   int
	Mood  Mood
	Tags  []string
	Owner *Person
	Toys  []*Toy
}

func (*Dog) Entity() string     { return "Dog" }
func (*Dog) Identifier() string { return "name" }
func (d *Dog) Map(m *mapping.Mapper) {
	m.String("name", &d.Name)
	m.Int("age", &d.Age)
	mapping.Enum(m, "mood", &d.Mood)
	m.Strings("tags", &d.Tags)
	mapping.Nested(m, "owner", &d.Owner)
	mapping.NestedList(m, "toys", &d.Toys)
}

// Indexes declares the index every Dog table carries.
func (*Dog) Indexes() []mapping.Index {
	return []mapping.Index{
		{Fields: []string{"age"}},
		{Fields: []string{"mood"}, Filter: query.NotNull("mood")},
	}
}

// Cat is a plain two-column type, named "Cat" in every version below.
type Cat struct {
	Name string
	Age  int
}

func (*Cat) Entity() string     { return "Cat" }
func (*Cat) Identifier() string { return "name" }
func (c *Cat) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.Int("age", &c.Age)
}

// CatV2 is a later version of Cat with an added field.
type CatV2 struct {
	Name  string
	Age   int
	Color *string
}

func (*CatV2) Entity() string     { return "Cat" }
func (*CatV2) Identifier() string { return "name" }
func (c *CatV2) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.Int("age", &c.Age)
	m.OptionalString("color", &c.Color)
}

// CatV3 drops age, which must stay in the table.
type CatV3 struct {
	Name  string
	Color *string
}

func (*CatV3) Entity() string     { return "Cat" }
func (*CatV3) Identifier() string { return "name" }
func (c *CatV3) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.OptionalString("color", &c.Color)
}

// CatListAge turns age into a collection, which no migration can reconcile.
type CatListAge struct {
	Name string
	Age  []int64
}

func (*CatListAge) Entity() string     { return "Cat" }
func (*CatListAge) Identifier() string { return "name" }
func (c *CatListAge) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.Int64s("age", &c.Age)
}

// CatTextAge turns age into text, which an integer column cannot hold.
type CatTextAge struct {
	Name string
	Age  string
}

func (*CatTextAge) Entity() string     { return "Cat" }
func (*CatTextAge) Identifier() string { return "name" }
func (c *CatTextAge) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.String("age", &c.Age)
}

// CatRealAge widens age to a real.
type CatRealAge struct {
	Name string
	Age  float64
}

func (*CatRealAge) Entity() string     { return "Cat" }
func (*CatRealAge) Identifier() string { return "name" }
func (c *CatRealAge) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.Float("age", &c.Age)
}

// CatByAge moves the identifier to age.
type CatByAge struct {
	Name string
	Age  int
}

func (*CatByAge) Entity() string     { return "Cat" }
func (*CatByAge) Identifier() string { return "age" }
func (c *CatByAge) Map(m *mapping.Mapper) {
	m.String("name", &c.Name)
	m.Int("age", &c.Age)
}

// Node forms reference cycles.
type Node struct {
	ID   string
	Next *Node
}

func (*Node) Entity() string     { return "Node" }
func (*Node) Identifier() string { return "id" }
func (n *Node) Map(m *mapping.Mapper) {
	m.String("id", &n.ID)
	mapping.Nested(m, "next", &n.Next)
}

// Badge has an optional identifier, so it can be written without one.
type Badge struct {
	Code  *string
	Label string
}

func (*Badge) Entity() string     { return "Badge" }
func (*Badge) Identifier() string { return "code" }
func (b *Badge) Map(m *mapping.Mapper) {
	m.OptionalString("code", &b.Code)
	m.String("label", &b.Label)
}

// Registry returns a registry holding Dog, Person, Toy, Cat, Node and Badge.
func Registry() *mapping.Registry {
	r := mapping.NewRegistry()
	err := r.Register(
		func() mapping.Model { return &Dog{} },
		func() mapping.Model { return &Person{} },
		func() mapping.Model { return &Toy{} },
		func() mapping.Model { return &Cat{} },
		func() mapping.Model { return &Node{} },
		func() mapping.Model { return &Badge{} },
	)
	if err != nil {
		panic(err)
	}
	return r
}
