package mapping

import "time"

type owner struct {
	ID   int64
	Name string
}

func (*owner) Entity() string     { return "Owner" }
func (*owner) Identifier() string { return "id" }
func (o *owner) Map(m *Mapper) {
	m.Int64("id", &o.ID)
	m.String("name", &o.Name)
}

type toy struct {
	SKU   string
	Label string
}

func (*toy) Entity() string     { return "Toy" }
func (*toy) Identifier() string { return "sku" }
func (t *toy) Map(m *Mapper) {
	m.String("sku", &t.SKU)
	m.String("label", &t.Label)
}

type mood string

type size int

type pet struct {
	Name   string
	Age    int
	Weight float64
	Good   bool
	Photo  []byte
	Born   time.Time
	Nick   *string
	Chip   *int64
	Score  *float64
	Tags   []string
	Counts []int64
	Marks  []float64
	Traits map[string]struct{}
	Mood   mood
	Size   size
	Owner  *owner
	Toys   []*toy
}

func (*pet) Entity() string     { return "Pet" }
func (*pet) Identifier() string { return "name" }
func (p *pet) Map(m *Mapper) {
	m.String("name", &p.Name)
	m.Int("age", &p.Age)
	m.Float("weight", &p.Weight)
	m.Bool("good", &p.Good)
	m.Bytes("photo", &p.Photo)
	m.Time("born", &p.Born)
	m.OptionalString("nick", &p.Nick)
	m.OptionalInt64("chip", &p.Chip)
	m.OptionalFloat("score", &p.Score)
	m.Strings("tags", &p.Tags)
	m.Int64s("counts", &p.Counts)
	m.Floats("marks", &p.Marks)
	m.StringSet("traits", &p.Traits)
	Enum(m, "mood", &p.Mood)
	IntEnum(m, "size", &p.Size)
	Nested(m, "owner", &p.Owner)
	NestedList(m, "toys", &p.Toys)
}

// node can form cycles through both a single reference and a collection.
type node struct {
	ID   string
	Next *node
	Kids []*node
}

func (*node) Entity() string     { return "Node" }
func (*node) Identifier() string { return "id" }
func (n *node) Map(m *Mapper) {
	m.String("id", &n.ID)
	Nested(m, "next", &n.Next)
	NestedList(m, "kids", &n.Kids)
}

// anonymous forgets to map its identifier.
type anonymous struct{ Label string }

func (*anonymous) Entity() string     { return "Anonymous" }
func (*anonymous) Identifier() string { return "id" }
func (a *anonymous) Map(m *Mapper)    { m.String("label", &a.Label) }

func testRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(
		func() Model { return &owner{} },
		func() Model { return &toy{} },
		func() Model { return &pet{} },
		func() Model { return &node{} },
	); err != nil {
		panic(err)
	}
	return r
}

func ptr[T any](v T) *T { return &v }
